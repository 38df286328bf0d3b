package attest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	infralog "github.com/zkrag/zkrag/internal/infrastructure/log"
)

func TestProvePoolProcessesTasks(t *testing.T) {
	m, err := NewManager(testConfig(t), infralog.Global())
	require.NoError(t, err)
	_, err = m.Setup()
	require.NoError(t, err)

	const taskCount = 3

	var mu sync.Mutex
	results := make(map[string]*ProofResult)
	done := make(chan struct{}, taskCount)

	m.StartWorkers(func(task *ProofTask, result *ProofResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, err)
		results[task.TaskID] = result
		done <- struct{}{}
	})
	defer m.StopWorkers()

	ids := make([]string, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		id, err := m.SubmitProof(testWitness(t, m))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for i := 0; i < taskCount; i++ {
		select {
		case <-done:
		case <-time.After(3 * time.Minute):
			t.Fatal("timed out waiting for proving tasks")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		result, ok := results[id]
		require.True(t, ok, "missing result for task %s", id)
		require.NotEmpty(t, result.Proof)

		verdict, err := m.VerifyBounded(context.Background(), result.Proof, result.PublicInputs)
		require.NoError(t, err)
		require.True(t, verdict.Valid)
	}

	stats := m.PoolStats()
	require.EqualValues(t, taskCount, stats["total_processed"])
	require.EqualValues(t, taskCount, stats["total_success"])
}

func TestProvePoolReportsFailures(t *testing.T) {
	m, err := NewManager(testConfig(t), infralog.Global())
	require.NoError(t, err)
	_, err = m.Setup()
	require.NoError(t, err)

	done := make(chan error, 1)
	m.StartWorkers(func(task *ProofTask, result *ProofResult, err error) {
		done <- err
	})
	defer m.StopWorkers()

	bad := testWitness(t, m)
	bad.RetrievedIndices = []int{2, 2}
	_, err = m.SubmitProof(bad)
	require.NoError(t, err)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrConstraintUnsatisfied)
	case <-time.After(time.Minute):
		t.Fatal("timed out waiting for failure callback")
	}
}

func TestSubmitWithoutWorkersFails(t *testing.T) {
	m, err := NewManager(testConfig(t), infralog.Global())
	require.NoError(t, err)

	_, err = m.SubmitProof(testWitness(t, m))
	require.Error(t, err)
}

func TestProvePoolBackpressure(t *testing.T) {
	prover := &Prover{} // never started, queue fills without draining
	pool := NewProvePool(prover, nil, 1, 2, time.Minute, infralog.Global())

	w := &QueryWitness{}
	require.NoError(t, pool.Submit(NewProofTask(w)))
	require.NoError(t, pool.Submit(NewProofTask(w)))
	require.Error(t, pool.Submit(NewProofTask(w)))

	require.Error(t, pool.Submit(nil))
}

func TestTaskStatusLifecycle(t *testing.T) {
	task := NewProofTask(&QueryWitness{})
	require.Equal(t, TaskStatusPending, task.Status())
	require.NotEmpty(t, task.TaskID)

	other := NewProofTask(&QueryWitness{})
	require.NotEqual(t, task.TaskID, other.TaskID)
}
