package app

import (
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, log.WithField("test", "kafka"))
	require.NoError(t, err)
	assert.Nil(t, producer)
}

func TestInitKafkaProducer_Error(t *testing.T) {
	original := newKafkaProducer
	t.Cleanup(func() { newKafkaProducer = original })

	boom := errors.New("no brokers")
	newKafkaProducer = func([]string) (*kafka.Producer, error) { return nil, boom }

	producer, err := initKafkaProducer([]string{"localhost:9092"}, log.WithField("test", "kafka"))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, producer)
}

func TestInitRuntimeDependencies_KafkaFailureIsNotFatal(t *testing.T) {
	original := newKafkaProducer
	t.Cleanup(func() { newKafkaProducer = original })
	newKafkaProducer = func([]string) (*kafka.Producer, error) { return nil, errors.New("no brokers") }

	deps, err := initRuntimeDependencies(t.Context(), Config{
		StorageDriver: StorageDriverMemory,
		KafkaBrokers:  []string{"localhost:9092"},
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, deps.publisher)
}

func TestCloseKafka_Nil(t *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka-close"))
}
