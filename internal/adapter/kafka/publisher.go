// Package kafka publishes updated statistic records for downstream
// consumers (reporting, alerting). Publishing is optional and feature-flagged
// by the presence of configured brokers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/icewatch/seaice-stats/internal/domain"
)

// Publisher produces StatRecord messages to a Kafka topic. It implements
// pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and sends the records in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, records []domain.StatRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// recordMessage is the wire form of a StatRecord. Areal values use pointers
// so NaN serializes as JSON null instead of failing to marshal.
type recordMessage struct {
	Date           string                   `json:"date"`
	Hemisphere     string                   `json:"hemisphere"`
	TotalExtentKm2 *float64                 `json:"total_extent_km2"`
	TotalAreaKm2   *float64                 `json:"total_area_km2"`
	Missing        *float64                 `json:"missing"`
	NotImagedKm2   *float64                 `json:"not_imaged_km2"`
	Regional       map[string]regionMessage `json:"regional,omitempty"`
	Source         string                   `json:"source_dataset"`
	Filenames      []string                 `json:"filenames,omitempty"`
	FailedQA       bool                     `json:"failed_qa"`
}

type regionMessage struct {
	ExtentKm2  *float64 `json:"extent_km2"`
	AreaKm2    *float64 `json:"area_km2"`
	MissingKm2 *float64 `json:"missing_km2"`
}

func serializeToMessage(rec domain.StatRecord) (kafkago.Message, error) {
	msg := recordMessage{
		Date:           rec.Date.Format(domain.DateFormat),
		Hemisphere:     rec.Hemisphere,
		TotalExtentKm2: nullable(rec.TotalExtentKm2),
		TotalAreaKm2:   nullable(rec.TotalAreaKm2),
		Missing:        nullable(rec.Missing),
		NotImagedKm2:   nullable(rec.NotImagedKm2),
		Source:         string(rec.Source),
		Filenames:      rec.Filenames,
		FailedQA:       rec.FailedQA,
	}
	if len(rec.Regional) > 0 {
		msg.Regional = make(map[string]regionMessage, len(rec.Regional))
		for name, rs := range rec.Regional {
			msg.Regional[name] = regionMessage{
				ExtentKm2:  nullable(rs.ExtentKm2),
				AreaKm2:    nullable(rs.AreaKm2),
				MissingKm2: nullable(rs.MissingKm2),
			}
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize stat record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(msg.Hemisphere + "|" + msg.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "hemisphere", Value: []byte(msg.Hemisphere)},
			{Key: "source_dataset", Value: []byte(msg.Source)},
		},
	}, nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
