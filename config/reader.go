package config

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"go.viam.com/evimo/logging"
)

// EnabledObjectsFile is the per dataset file that switches object slots on.
const EnabledObjectsFile = "config.txt"

// Read reads options from a YAML or JSON file on top of the defaults. Environment variables in
// the file are expanded.
func Read(filePath string) (Options, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return Options{}, err
	}
	opts, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return Options{}, errors.Wrapf(err, "cannot read config %q", filePath)
	}
	return opts, nil
}

// FromReader decodes options from r on top of the defaults.
func FromReader(r io.Reader) (Options, error) {
	opts := Default()
	var raw map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, errors.Wrap(err, "failed to decode config")
	}
	if err := DecodeInto(raw, &opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// DecodeInto decodes generic attributes into a typed value using the json field names.
func DecodeInto(raw map[string]interface{}, to interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           to,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "error creating decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return errors.Wrap(err, "error decoding config")
	}
	return nil
}

// ParseEnabledObjects reads up to three lines; a line containing "true" enables slot i+1.
func ParseEnabledObjects(r io.Reader, logger logging.Logger) (map[int]bool, error) {
	enabled := map[int]bool{}
	scanner := bufio.NewScanner(r)
	for i := 0; i < len(ObjectIDs) && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), "true") {
			logger.Infof("enabling object %d", ObjectIDs[i])
			enabled[ObjectIDs[i]] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return enabled, nil
}

// ReadEnabledObjects reads the enabled object slots of a dataset folder. A missing file is an
// error.
func ReadEnabledObjects(path string, logger logging.Logger) (map[int]bool, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open configuration file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return ParseEnabledObjects(f, logger)
}
