package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/hazyhaar/facility-names/pkg/facility"
)

type MemorySuite struct {
	suite.Suite
	reg *Memory
	ctx context.Context
}

func (s *MemorySuite) SetupTest() {
	s.reg = NewMemory()
	s.ctx = context.Background()
}

func TestMemorySuite(t *testing.T) {
	suite.Run(t, new(MemorySuite))
}

func withSlug(id, slug string) facility.Facility {
	return facility.Facility{ID: id, Derived: facility.Derived{Slug: slug}}
}

func (s *MemorySuite) seed(fs ...facility.Facility) []SeedConflict {
	conflicts, err := s.reg.Seed(s.ctx, fs)
	s.Require().NoError(err)
	return conflicts
}

func (s *MemorySuite) TestSeedAndLookup() {
	s.Run("seeds existing pairs and skips unslugged facilities", func() {
		conflicts := s.seed(withSlug("zaf-1", "karee-mine"), withSlug("aus-1", "koolyanobbing-mine"), withSlug("aus-2", ""))
		s.Empty(conflicts)
		s.Equal(2, s.reg.Len())

		owner, ok := s.reg.Lookup("karee-mine")
		s.True(ok)
		s.Equal("zaf-1", owner)

		_, ok = s.reg.Lookup("missing")
		s.False(ok)
	})

	s.Run("reseeding replaces previous content", func() {
		s.seed(withSlug("rus-1", "krasnoyarsk-smelter"))
		s.Equal(1, s.reg.Len())
		_, ok := s.reg.Lookup("karee-mine")
		s.False(ok)
		s.Empty(s.reg.Journal())
	})
}

func (s *MemorySuite) TestSeedConflicts() {
	conflicts := s.seed(
		withSlug("zaf-2", "waterval-smelter"),
		withSlug("zaf-1", "waterval-smelter"),
		withSlug("zaf-3", "Not A Slug"),
	)
	s.Require().Len(conflicts, 2)

	owner, _ := s.reg.Lookup("waterval-smelter")
	s.Equal("zaf-1", owner, "lowest id keeps a duplicated slug")

	byID := map[string]SeedConflict{}
	for _, c := range conflicts {
		byID[c.FacilityID] = c
	}
	s.Equal("duplicate slug", byID["zaf-2"].Reason)
	s.Equal("zaf-1", byID["zaf-2"].Owner)
	s.Equal("invalid slug", byID["zaf-3"].Reason)
}

func (s *MemorySuite) TestSeedCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.reg.Seed(ctx, []facility.Facility{withSlug("a", "a")})
	s.ErrorIs(err, context.Canceled)
	s.False(s.reg.Seeded())
}

func (s *MemorySuite) TestReserve() {
	s.Run("refuses before seeding", func() {
		s.ErrorIs(s.reg.Reserve("karee-mine", "zaf-1"), ErrNotSeeded)
	})

	s.seed(withSlug("zaf-1", "karee-mine"))

	s.Run("same owner is a no-op success", func() {
		s.NoError(s.reg.Reserve("karee-mine", "zaf-1"))
		s.Empty(s.reg.Journal())
	})

	s.Run("different owner conflicts without overwriting", func() {
		err := s.reg.Reserve("karee-mine", "zaf-9")
		s.ErrorIs(err, ErrConflict)

		var ce *ConflictError
		s.Require().ErrorAs(err, &ce)
		s.Equal("zaf-1", ce.Owner)
		s.Equal("zaf-9", ce.Requester)

		owner, _ := s.reg.Lookup("karee-mine")
		s.Equal("zaf-1", owner)
	})

	s.Run("free slug is claimed and journaled", func() {
		s.NoError(s.reg.Reserve("karee-mine-rustenburg", "zaf-9"))
		s.Equal([]Change{{Op: "reserve", Slug: "karee-mine-rustenburg", FacilityID: "zaf-9"}}, s.reg.Journal())
	})

	s.Run("invalid slug is rejected", func() {
		s.ErrorIs(s.reg.Reserve("Bad Slug", "zaf-9"), ErrInvalidSlug)
	})
}

func (s *MemorySuite) TestRelease() {
	s.seed(withSlug("zaf-1", "karee-mine"))

	s.False(s.reg.Release("karee-mine", "zaf-2"), "only the owner may release")
	s.True(s.reg.Release("karee-mine", "zaf-1"))
	s.False(s.reg.Release("karee-mine", "zaf-1"))

	s.NoError(s.reg.Reserve("karee-mine", "zaf-2"))
	owner, _ := s.reg.Lookup("karee-mine")
	s.Equal("zaf-2", owner)
}

func (s *MemorySuite) TestEntriesSorted() {
	s.seed(withSlug("b", "beta"), withSlug("a", "alpha"))
	s.Equal([]Entry{{Slug: "alpha", FacilityID: "a"}, {Slug: "beta", FacilityID: "b"}}, s.reg.Entries())
}

// Concurrent partitions racing for the same slug: exactly one wins.
func (s *MemorySuite) TestReserveLinearized() {
	s.seed()

	const workers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.reg.Reserve("waterval-smelter", fmt.Sprintf("f-%02d", i)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	s.Equal(1, wins)
	s.Equal(1, s.reg.Len())
}
