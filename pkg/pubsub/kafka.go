package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// KafkaBus maps each namespace to one topic and uses the destination id as
// the record key, so one chat's or one user's events stay on one partition
// in order. Each instance streams through its own consumer group.
type KafkaBus struct {
	producer *kafka.Producer
	cfg      KafkaConfig
	instance string

	mu      sync.Mutex
	closed  bool
	streams sync.WaitGroup
	stop    chan struct{}
}

func NewKafkaBus(ctx context.Context, cfg KafkaConfig) (*KafkaBus, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: kafka producer: %w", err)
	}

	k := &KafkaBus{
		producer: producer,
		cfg:      cfg,
		instance: uuid.NewString(),
		stop:     make(chan struct{}),
	}
	go func() {
		for ev := range producer.Events() {
			if kerr, ok := ev.(kafka.Error); ok {
				log.Error().Err(kerr).Bool("fatal", kerr.IsFatal()).Msg("kafka bus producer error")
			}
		}
	}()
	if err := k.createTopics(ctx); err != nil {
		log.Warn().Err(err).Msg("kafka bus could not create topics, assuming they exist")
	}
	return k, nil
}

func (k *KafkaBus) topic(ns Namespace) string {
	prefix := k.cfg.TopicPrefix
	if prefix == "" {
		prefix = "wes-chat"
	}
	return prefix + "." + string(ns) + "-events"
}

func (k *KafkaBus) createTopics(ctx context.Context) error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return err
	}
	defer admin.Close()

	partitions := k.cfg.Partitions
	if partitions <= 0 {
		partitions = 4
	}
	specs := make([]kafka.TopicSpecification, 0, len(Namespaces))
	for _, ns := range Namespaces {
		specs = append(specs, kafka.TopicSpecification{Topic: k.topic(ns), NumPartitions: partitions, ReplicationFactor: 1})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range results {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			errs = append(errs, fmt.Errorf("%s: %s", r.Topic, r.Error))
		}
	}
	return errors.Join(errs...)
}

// Publish waits for the broker's delivery report, so a nil error means the
// envelope was stored.
func (k *KafkaBus) Publish(ctx context.Context, env *Envelope) error {
	ns, id, err := destinationNamespace(env)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("pubsub: encode %s: %w", env.Type, err)
	}

	k.mu.Lock()
	closed := k.closed
	k.mu.Unlock()
	if closed {
		return ErrClosed
	}

	topic := k.topic(ns)
	report := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(id),
		Value:          raw,
	}, report)
	if err != nil {
		return fmt.Errorf("pubsub: kafka produce %s: %w", env.Destination, err)
	}

	select {
	case ev := <-report:
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("pubsub: kafka delivery %s: %w", env.Destination, m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaBus) Stream(ctx context.Context, ns Namespace) (<-chan *Envelope, error) {
	if !ns.valid() {
		return nil, fmt.Errorf("pubsub: unknown namespace %q", ns)
	}

	group := k.cfg.GroupID
	if group == "" {
		group = "wes-chat"
	}
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  k.cfg.Brokers,
		"group.id":           fmt.Sprintf("%s-%s-%s", group, ns, k.instance),
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: kafka consumer: %w", err)
	}
	if err := consumer.Subscribe(k.topic(ns), nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("pubsub: kafka subscribe %s: %w", k.topic(ns), err)
	}

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		consumer.Close()
		return nil, ErrClosed
	}
	k.streams.Add(1)
	k.mu.Unlock()

	out := make(chan *Envelope, streamBuffer)
	go k.consume(ctx, consumer, out)
	return out, nil
}

func (k *KafkaBus) consume(ctx context.Context, consumer *kafka.Consumer, out chan<- *Envelope) {
	defer k.streams.Done()
	defer close(out)
	defer consumer.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-k.stop:
			return
		default:
		}

		msg, err := consumer.ReadMessage(250 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.IsTimeout() {
					continue
				}
				if kerr.IsFatal() {
					log.Error().Err(err).Msg("kafka bus consumer failed")
					return
				}
			}
			log.Warn().Err(err).Msg("kafka bus read failed")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			log.Warn().Err(err).Str("key", string(msg.Key)).Msg("kafka bus dropped undecodable envelope")
			continue
		}
		select {
		case out <- &env:
		default:
			log.Warn().Str("destination", env.Destination).Msg("kafka bus stream full, envelope dropped")
		}
	}
}

func (k *KafkaBus) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.stop)
	k.mu.Unlock()

	k.streams.Wait()
	if left := k.producer.Flush(5000); left > 0 {
		log.Warn().Int("pending", left).Msg("kafka bus closed with undelivered envelopes")
	}
	k.producer.Close()
	return nil
}
