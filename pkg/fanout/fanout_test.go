package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name    string
		items   []int
		workers int
		fn      func(ctx context.Context, item int) (int, error)
		want    []int
		wantErr []bool
	}{
		{
			name:    "results keep input order",
			items:   []int{1, 2, 3, 4},
			workers: 2,
			fn: func(_ context.Context, item int) (int, error) {
				// Later items finish first to exercise out-of-order completion.
				time.Sleep(time.Duration(5-item) * time.Millisecond)
				return item * 10, nil
			},
			want:    []int{10, 20, 30, 40},
			wantErr: []bool{false, false, false, false},
		},
		{
			name:    "one failure does not poison the batch",
			items:   []int{1, 2, 3},
			workers: 3,
			fn: func(_ context.Context, item int) (int, error) {
				if item == 2 {
					return 0, errors.New("lookup failed")
				}
				return item, nil
			},
			want:    []int{1, 0, 3},
			wantErr: []bool{false, true, false},
		},
		{
			name:    "empty input",
			items:   nil,
			workers: 5,
			fn:      func(_ context.Context, item int) (int, error) { return item, nil },
			want:    []int{},
			wantErr: []bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(context.Background(), tt.items, tt.workers, tt.fn)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Value != tt.want[i] {
					t.Errorf("result %d = %d, want %d", i, got[i].Value, tt.want[i])
				}
				if (got[i].Err != nil) != tt.wantErr[i] {
					t.Errorf("result %d error presence = %v, want %v", i, got[i].Err != nil, tt.wantErr[i])
				}
			}
		})
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	items := make([]int, 20)

	Map(context.Background(), items, 5, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return struct{}{}, nil
	})

	if got := atomic.LoadInt64(&peak); got > 5 {
		t.Errorf("peak concurrency = %d, want <= 5", got)
	}
}
