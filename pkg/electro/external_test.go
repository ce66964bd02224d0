package electro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExternalPublisherDiagnosesWaveforms(t *testing.T) {
	reports := make(chan []*Report, 4)
	pub, err := NewExternalPublisher(&ExternalPublisherConfig{
		WAL:    WALConfig{Dir: t.TempDir()},
		Policy: Policy{IdleSleep: time.Millisecond},
	}, func(batch []*Report) error {
		reports <- batch
		return nil
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, pub.Close(context.Background())) }()

	require.NoError(t, pub.PublishWaveform("fan-1", synthetic(60000)))

	select {
	case batch := <-reports:
		require.Len(t, batch, 1)
		require.Equal(t, "fan-1", batch[0].MotorID)
		require.Equal(t, uint64(1), batch[0].Seq)
		require.Equal(t, DefaultMachine(), batch[0].Parameters)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for report")
	}
}

func TestExternalPublisherRejectsBadInput(t *testing.T) {
	_, err := NewExternalPublisher(nil, func([]*Report) error { return nil })
	require.Error(t, err)
	_, err = NewExternalPublisher(&ExternalPublisherConfig{WAL: WALConfig{Dir: t.TempDir()}}, nil)
	require.Error(t, err)

	pub, err := NewExternalPublisher(&ExternalPublisherConfig{
		WAL:       WALConfig{Dir: t.TempDir()},
		Diagnoser: &stubDiagnoser{},
	}, func([]*Report) error { return nil })
	require.NoError(t, err)

	require.Error(t, pub.Publish(nil))
	require.Error(t, pub.Publish(&Frame{Waveform: synthetic(10)}))
	require.Error(t, pub.Publish(&Frame{MotorID: "m", Waveform: Waveform{SampleRate: testRate}}))

	require.NoError(t, pub.Close(context.Background()))
	require.ErrorIs(t, pub.Publish(&Frame{MotorID: "m", Waveform: synthetic(10)}), ErrPublisherClosed)
	require.NoError(t, pub.Close(context.Background()))
}

func TestExternalPublisherQueueFull(t *testing.T) {
	blocked := make(chan struct{})
	pub, err := NewExternalPublisher(&ExternalPublisherConfig{
		WAL:       WALConfig{Dir: t.TempDir()},
		Diagnoser: &stubDiagnoser{},
		Policy:    Policy{MaxQueueLen: 1, MaxBatchSize: 1, OnQueueFull: "reject", IdleSleep: time.Millisecond},
	}, func([]*Report) error {
		<-blocked
		return nil
	})
	require.NoError(t, err)

	var full error
	for i := 0; i < 10 && full == nil; i++ {
		if err := pub.PublishWaveform("m", synthetic(10)); err != nil {
			full = err
		}
	}
	require.ErrorIs(t, full, ErrQueueFull)

	close(blocked)
	require.NoError(t, pub.Close(context.Background()))
}

func TestExternalPublisherReplaysAfterRestart(t *testing.T) {
	dir := t.TempDir()

	pub, err := NewExternalPublisher(&ExternalPublisherConfig{
		WAL:       WALConfig{Dir: dir},
		Diagnoser: &stubDiagnoser{},
		Policy:    Policy{IdleSleep: time.Millisecond},
	}, func([]*Report) error { return errors.New("downstream unavailable") })
	require.NoError(t, err)
	require.NoError(t, pub.PublishWaveform("m", synthetic(10)))
	require.NoError(t, pub.Close(context.Background()))

	got := make(chan []*Report, 1)
	pub, err = NewExternalPublisher(&ExternalPublisherConfig{
		WAL:       WALConfig{Dir: dir},
		Diagnoser: &stubDiagnoser{},
		Policy:    Policy{IdleSleep: time.Millisecond},
	}, func(batch []*Report) error {
		got <- batch
		return nil
	})
	require.NoError(t, err)
	defer func() { _ = pub.Close(context.Background()) }()

	select {
	case batch := <-got:
		require.Len(t, batch, 1)
		require.Equal(t, "m", batch[0].MotorID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replayed report")
	}
}
