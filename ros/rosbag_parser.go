// Package ros reads the recorded streams of a sequence out of a rosbag.
package ros

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"go.viam.com/evimo/config"
	"go.viam.com/evimo/dataset"
	"go.viam.com/evimo/logging"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read ros bag %q", filename)
	}
	return rb, nil
}

// topicKey is the name gobag files the JSON of a topic under.
func topicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// decodeLines decodes one JSON message per line.
func decodeLines[T any](buf *bytes.Buffer) ([]T, error) {
	if buf == nil {
		return nil, nil
	}
	var out []T
	for {
		line, err := buf.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var msg T
			if err := json.Unmarshal(line, &msg); err != nil {
				return nil, errors.Wrap(err, "cannot decode message")
			}
			out = append(out, msg)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
	}
}

// ReadStreams extracts the camera, object, event and optionally image streams named by topics.
// objectTopics maps object ids to their tracker topics.
func ReadStreams(rb *rosbag.RosBag, topics config.Topics, objectTopics map[int]string, withImages bool,
	logger logging.Logger,
) (dataset.Streams, error) {
	wanted := map[string]bool{topics.Camera: true, topics.Events: true}
	for _, topic := range objectTopics {
		wanted[topic] = true
	}
	if withImages {
		wanted[topics.Images] = true
	}
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(topic string) bool { return wanted[topic] },
		false,
	); err != nil {
		return dataset.Streams{}, errors.Wrap(err, "error while parsing bag to JSON")
	}
	return streamsFromJSON(rb.TopicsAsJSON, topics, objectTopics, withImages, logger)
}

func streamsFromJSON(byTopic map[string]*bytes.Buffer, topics config.Topics, objectTopics map[int]string,
	withImages bool, logger logging.Logger,
) (dataset.Streams, error) {
	var streams dataset.Streams
	lookup := func(topic string) *bytes.Buffer {
		return byTopic[topicKey(topic)]
	}

	camera, err := decodeLines[SubjectMessage](lookup(topics.Camera))
	if err != nil {
		return streams, errors.Wrapf(err, "topic %s", topics.Camera)
	}
	if len(camera) == 0 {
		return streams, errors.Errorf("no camera poses on %s", topics.Camera)
	}
	streams.Camera = lo.Map(camera, func(m SubjectMessage, _ int) dataset.PoseSample { return m.PoseSample() })

	streams.Objects = make(map[int][]dataset.PoseSample, len(objectTopics))
	for id, topic := range objectTopics {
		msgs, err := decodeLines[SubjectMessage](lookup(topic))
		if err != nil {
			return streams, errors.Wrapf(err, "topic %s", topic)
		}
		if len(msgs) == 0 {
			logger.Warnw("no poses for enabled object", "object", id, "topic", topic)
		}
		streams.Objects[id] = lo.Map(msgs, func(m SubjectMessage, _ int) dataset.PoseSample { return m.PoseSample() })
	}

	evs, err := decodeLines[EventArrayMessage](lookup(topics.Events))
	if err != nil {
		return streams, errors.Wrapf(err, "topic %s", topics.Events)
	}
	streams.EventMessages = lo.Map(evs, func(m EventArrayMessage, _ int) dataset.EventMessage { return m.EventMessage() })

	if withImages {
		imgs, err := decodeLines[ImageMessage](lookup(topics.Images))
		if err != nil {
			return streams, errors.Wrapf(err, "topic %s", topics.Images)
		}
		for i := range imgs {
			sample, err := imgs[i].ImageSample()
			if err != nil {
				return streams, errors.Wrapf(err, "image %d on %s", i, topics.Images)
			}
			streams.Images = append(streams.Images, sample)
		}
	}

	logger.Infow("read rosbag",
		"camera_poses", len(streams.Camera), "event_messages", len(streams.EventMessages), "images", len(streams.Images))
	return streams, nil
}

// Load reads the bag at path and ingests its streams into the session.
func Load(path string, s *dataset.Session) error {
	rb, err := ReadBag(path)
	if err != nil {
		return err
	}
	streams, err := ReadStreams(rb, s.Options.Topics, s.ObjectTopics(), s.Options.WithImages, s.Logger())
	if err != nil {
		return err
	}
	return s.Ingest(streams)
}

// FindBag returns the only .bag file in folder.
func FindBag(folder string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(folder, "*.bag"))
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		return "", errors.Errorf("expected one .bag file in %q, found %d", folder, len(matches))
	}
	return matches[0], nil
}
