package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelThroughWrapping(t *testing.T) {
	err := fmt.Errorf("fetch apt trades: %w", Wrap(KindAuthFailure, errors.New("401"), "key rejected"))

	assert.ErrorIs(t, err, ErrAuthFailure)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Equal(t, KindAuthFailure, KindOf(err))
}

func TestErrorUnwrapsCause(t *testing.T) {
	err := Wrap(KindTimedOut, context.DeadlineExceeded, "call exceeded deadline")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestAmbiguousRegionCopiesCandidates(t *testing.T) {
	candidates := []string{"서울특별시 중구", "부산광역시 중구"}
	err := AmbiguousRegion("중구", candidates)
	candidates[0] = "changed"

	assert.Equal(t, []string{"서울특별시 중구", "부산광역시 중구"}, err.Candidates)
	assert.Equal(t, "region", err.Field)
	assert.Contains(t, err.Error(), "부산광역시 중구")
}

func TestToPayload(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Payload
	}{
		{
			name: "validation keeps field",
			err:  Validation("page_size", "must be at most %d", 1000),
			want: Payload{Kind: KindValidation, Field: "page_size", Message: "must be at most 1000"},
		},
		{
			name: "plain error becomes permanent",
			err:  errors.New("boom"),
			want: Payload{Kind: KindPermanent, Message: "boom"},
		},
		{
			name: "cause appended to message",
			err:  Wrap(KindUpstreamUnavailable, errors.New("503"), "gave up after 4 attempts"),
			want: Payload{Kind: KindUpstreamUnavailable, Message: "gave up after 4 attempts: 503"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToPayload(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(KindTransient))
	assert.True(t, Retryable(KindRateLimited))
	assert.False(t, Retryable(KindAuthFailure))
	assert.False(t, Retryable(KindPermanent))
}
