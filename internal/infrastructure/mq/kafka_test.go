package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSetsKeyAndHeader(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "BATCH-1" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "project.approved" {
			return errors.New("missing event_type header")
		}
		return nil
	})

	p := NewProducerWith(sp, zerolog.Nop())
	require.NoError(t, p.Publish("project-events", "BATCH-1", "project.approved", `{"project_id":"BATCH-1"}`))
	require.NoError(t, p.Close())
}

func TestPublishReturnsBrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewProducerWith(sp, zerolog.Nop())
	err := p.Publish("wallet-ledger", "e1", "wallet.BONUS", "{}")
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}

func TestNewSaramaConfigIsValid(t *testing.T) {
	assert.NoError(t, NewSaramaConfig().Validate())
}
