package data

import (
	"context"
	"sync"
	"time"

	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
)

// slidingWindow counts transactions per content type in buckets of resolution, covering length.
// Each series always holds length/resolution buckets ending at the current bucket.
type slidingWindow struct {
	resolution       time.Duration
	length           time.Duration
	evictionInterval time.Duration
	// clockdrift allows transactions signed slightly in the future to count in the current bucket.
	clockdrift time.Duration
	now        func() time.Time

	mutex      sync.Mutex
	dataPoints map[string][]domain.DataPoint
}

func newSlidingWindow(resolution, length, evictionInterval time.Duration, now func() time.Time) *slidingWindow {
	return &slidingWindow{
		resolution:       resolution,
		length:           length,
		evictionInterval: evictionInterval,
		clockdrift:       5 * time.Second,
		now:              now,
		dataPoints:       map[string][]domain.DataPoint{},
	}
}

func (s *slidingWindow) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// maxLength is the number of buckets in a series.
func (s *slidingWindow) maxLength() int {
	return int(s.length / s.resolution)
}

// Start slides and consolidates the window every evictionInterval until ctx is done.
func (s *slidingWindow) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.evictionInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mutex.Lock()
				s.slide(s.clock())
				s.consolidate()
				s.mutex.Unlock()
			}
		}
	}()
}

// AddCount adds one to the bucket of at. Transactions older than the window are ignored,
// as are transactions further in the future than the clock drift allows.
func (s *slidingWindow) AddCount(contentType string, at time.Time) {
	now := s.clock()
	if at.After(now) {
		if at.After(now.Add(s.clockdrift)) {
			return
		}
		at = now
	}
	at = at.Truncate(s.resolution)
	if !at.After(now.Truncate(s.resolution).Add(-s.length)) {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	points := s.dataPoints[contentType]
	for i := range points {
		if points[i].Timestamp.Equal(at) {
			points[i].Count++
			return
		}
	}

	s.dataPoints[contentType] = append(points, domain.DataPoint{Timestamp: at, Count: 1})
	s.consolidate()
}

// slide removes buckets that fell out of the window. The caller holds the mutex.
func (s *slidingWindow) slide(now time.Time) {
	cutoff := now.Truncate(s.resolution).Add(-s.length)
	for cty, points := range s.dataPoints {
		kept := points[:0]
		for _, dp := range points {
			if dp.Timestamp.After(cutoff) {
				kept = append(kept, dp)
			}
		}
		s.dataPoints[cty] = kept
	}
}

// consolidate makes every series exactly maxLength buckets ending at the current bucket,
// filling gaps with zero counts. The caller holds the mutex.
func (s *slidingWindow) consolidate() {
	last := s.clock().Truncate(s.resolution)
	n := s.maxLength()

	for cty, points := range s.dataPoints {
		counts := make(map[int64]uint32, len(points))
		for _, dp := range points {
			counts[dp.Timestamp.Truncate(s.resolution).UnixNano()] += dp.Count
		}

		series := make([]domain.DataPoint, n)
		for i := 0; i < n; i++ {
			ts := last.Add(time.Duration(i-n+1) * s.resolution)
			series[i] = domain.DataPoint{Timestamp: ts, Count: counts[ts.UnixNano()]}
		}
		s.dataPoints[cty] = series
	}
}

// Snapshot returns a copy of all series.
func (s *slidingWindow) Snapshot() map[string][]domain.DataPoint {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := make(map[string][]domain.DataPoint, len(s.dataPoints))
	for cty, points := range s.dataPoints {
		result[cty] = append([]domain.DataPoint(nil), points...)
	}
	return result
}
