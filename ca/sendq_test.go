package ca

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Helpers ---

// patternBytes returns n bytes of a deterministic non-repeating-ish pattern.
func patternBytes(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 251)
	}
	return p
}

// --- SendQueue Test Suite ---

type SendQueueTestSuite struct {
	suite.Suite
	pool *BlockPool
	q    *SendQueue
}

// SetupTest runs before each test in the suite, ensuring a clean state.
func (s *SendQueueTestSuite) SetupTest() {
	s.pool = NewBlockPool(0)
	s.q = NewSendQueue(s.pool)
}

func (s *SendQueueTestSuite) TestEmptyQueue() {
	s.Assert().Zero(s.q.OccupiedBytes())
	_, ok := s.q.PopBlock()
	s.Assert().False(ok)

	// Bracketing nothing changes nothing.
	s.q.BeginMsg()
	s.q.CommitMsg()
	s.q.CommitMsg()
	s.Assert().Zero(s.q.OccupiedBytes())
}

func (s *SendQueueTestSuite) TestCommitLifecycle() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(100)))
	s.q.CommitMsg()
	s.Assert().Equal(100, s.q.OccupiedBytes())

	// A second build in flight counts toward the total.
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(50)))
	s.Assert().Equal(150, s.q.OccupiedBytes())

	// Abandoning it restores the committed boundary exactly.
	s.q.BeginMsg()
	s.Assert().Equal(100, s.q.OccupiedBytes())
	s.Assert().Equal(patternBytes(100), drainQueue(s.T(), s.q))
}

func (s *SendQueueTestSuite) TestRollbackAcrossBlocks() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(10)))
	s.q.CommitMsg()

	// The abandoned build spills well into a second block.
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(30000)))
	s.Assert().Equal(30010, s.q.OccupiedBytes())

	s.q.BeginMsg()
	s.Assert().Equal(10, s.q.OccupiedBytes())
	s.Assert().EqualValues(1, s.pool.Stats().Puts, "the emptied spill block goes back to the pool")
	s.Assert().EqualValues(1, s.pool.Stats().Outstanding)
}

func (s *SendQueueTestSuite) TestRollbackReleasesEverything() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(40000)))
	s.q.BeginMsg()

	s.Assert().Zero(s.q.OccupiedBytes())
	s.Assert().Zero(s.pool.Stats().Outstanding)
	_, ok := s.q.PopBlock()
	s.Assert().False(ok)
}

func (s *SendQueueTestSuite) TestPopDiscardsUncommitted() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(24)))
	s.q.CommitMsg()

	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(500)))

	b, ok := s.q.PopBlock()
	s.Require().True(ok)
	s.Assert().Equal(patternBytes(24), b.Bytes(), "the consumer sees committed bytes only")
	s.pool.Put(b)

	s.Assert().Zero(s.q.OccupiedBytes())
	_, ok = s.q.PopBlock()
	s.Assert().False(ok)
}

func (s *SendQueueTestSuite) TestPopOnUncommittedOnly() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(5000)))

	_, ok := s.q.PopBlock()
	s.Assert().False(ok)
	s.Assert().Zero(s.q.OccupiedBytes())
	s.Assert().Zero(s.pool.Stats().Outstanding)
}

func (s *SendQueueTestSuite) TestPopOrderIsFIFO() {
	payload := patternBytes(2*BlockCapacity + 3616)
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(payload))
	s.q.CommitMsg()

	var out []byte
	nBlocks := 0
	for {
		b, ok := s.q.PopBlock()
		if !ok {
			break
		}
		nBlocks++
		out = append(out, b.Bytes()...)
		s.pool.Put(b)
	}
	s.Assert().Equal(3, nBlocks)
	s.Assert().Equal(payload, out)
}

func (s *SendQueueTestSuite) TestQueueReusableAfterDrain() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(100)))
	s.q.CommitMsg()
	drainQueue(s.T(), s.q)

	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes([]byte{7, 8, 9}))
	s.q.CommitMsg()
	s.Assert().Equal([]byte{7, 8, 9}, drainQueue(s.T(), s.q))
}

func (s *SendQueueTestSuite) TestClear() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(20000)))
	s.q.CommitMsg()
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(300)))

	s.q.Clear()
	s.Assert().Zero(s.q.OccupiedBytes())
	s.Assert().Zero(s.pool.Stats().Outstanding)
	_, ok := s.q.PopBlock()
	s.Assert().False(ok)
}

func (s *SendQueueTestSuite) TestScalarsNeverSplitAcrossBlocks() {
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushBytes(patternBytes(BlockCapacity - 1)))
	s.Require().NoError(s.q.PushUint32(0xCAFEF00D))
	s.q.CommitMsg()

	first, ok := s.q.PopBlock()
	s.Require().True(ok)
	second, ok := s.q.PopBlock()
	s.Require().True(ok)
	s.Assert().Equal(BlockCapacity-1, first.OccupiedBytes(), "the short tail stays short")
	s.Assert().Equal([]byte{0xCA, 0xFE, 0xF0, 0x0D}, second.Bytes())
}

func (s *SendQueueTestSuite) TestArraySpillsWholeElements() {
	vals := make([]float64, 5000)
	for i := range vals {
		vals[i] = float64(i)
	}
	s.q.BeginMsg()
	s.Require().NoError(s.q.PushDataType(DBRDouble, vals, len(vals)))
	s.q.CommitMsg()
	s.Assert().Equal(40000, s.q.OccupiedBytes())

	var sizes []int
	var out []byte
	for {
		b, ok := s.q.PopBlock()
		if !ok {
			break
		}
		sizes = append(sizes, b.OccupiedBytes())
		out = append(out, b.Bytes()...)
		s.pool.Put(b)
	}
	s.Assert().Equal([]int{BlockCapacity, BlockCapacity, 7232}, sizes)
	for _, n := range sizes {
		s.Assert().Zero(n%8, "no torn elements at block boundaries")
	}
	for i, want := range vals {
		got := math.Float64frombits(Order.Uint64(out[i*8:]))
		s.Require().Equal(want, got, "element %d", i)
	}
}

func (s *SendQueueTestSuite) TestThresholds() {
	s.T().Run("EarlyBoundary", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		q.BeginMsg()
		require.NoError(t, q.PushBytes(make([]byte, 4*BlockCapacity)))
		q.CommitMsg()

		assert.False(t, q.FlushEarlyThreshold(0), "exactly at the limit is not past it")
		assert.True(t, q.FlushEarlyThreshold(1))
		assert.False(t, q.FlushBlockThreshold(12*BlockCapacity))
		assert.True(t, q.FlushBlockThreshold(12*BlockCapacity+1))
	})

	s.T().Run("BlockBoundary", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		q.BeginMsg()
		require.NoError(t, q.PushBytes(make([]byte, 16*BlockCapacity)))
		q.CommitMsg()

		assert.False(t, q.FlushBlockThreshold(0))
		assert.True(t, q.FlushBlockThreshold(1))
	})

	s.T().Run("EmptyQueue", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		assert.False(t, q.FlushEarlyThreshold(4*BlockCapacity))
		assert.True(t, q.FlushEarlyThreshold(4*BlockCapacity+1))
		assert.False(t, q.FlushBlockThreshold(16*BlockCapacity))
		assert.True(t, q.FlushBlockThreshold(16*BlockCapacity+1))
	})

	s.T().Run("UncommittedBytesCount", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		q.BeginMsg()
		require.NoError(t, q.PushBytes(make([]byte, 4*BlockCapacity+1)))
		assert.True(t, q.FlushEarlyThreshold(0), "an open build still holds memory")
	})
}

func (s *SendQueueTestSuite) TestAllocExhaustion() {
	s.T().Run("ScalarRefused", func(t *testing.T) {
		pool := NewBlockPool(1)
		q := NewSendQueue(pool)
		q.BeginMsg()
		require.NoError(t, q.PushBytes(make([]byte, BlockCapacity)))

		err := q.PushUint16(7)
		require.ErrorIs(t, err, ErrAllocExhausted)
		assert.Equal(t, BlockCapacity, q.OccupiedBytes(), "the refused scalar leaves no partial bytes")

		q.BeginMsg()
		assert.Zero(t, q.OccupiedBytes())
		assert.Zero(t, pool.Stats().Outstanding)
	})

	s.T().Run("MidArray", func(t *testing.T) {
		pool := NewBlockPool(1)
		q := NewSendQueue(pool)
		q.BeginMsg()

		err := q.PushDataType(DBRDouble, make([]float64, 3000), 3000)
		require.ErrorIs(t, err, ErrAllocExhausted)
		assert.Equal(t, BlockCapacity, q.OccupiedBytes(), "bytes placed before the failure stay queued")

		// The abandoned build rolls back to a consistent empty queue.
		q.BeginMsg()
		assert.Zero(t, q.OccupiedBytes())
		assert.Zero(t, pool.Stats().Outstanding)
	})
}

func TestSendQueueTestSuite(t *testing.T) {
	suite.Run(t, new(SendQueueTestSuite))
}
