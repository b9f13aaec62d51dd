package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikolayk812/slotprice/internal/domain"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.ClockTime
		wantErr bool
	}{
		{in: "10:00", want: domain.NewClockTime(10, 0)},
		{in: "00:00", want: domain.NewClockTime(0, 0)},
		{in: "23:59", want: domain.NewClockTime(23, 59)},
		{in: "9:30", want: domain.NewClockTime(9, 30)},
		{in: "24:00", want: domain.NewClockTime(24, 0)}, // slot ending at midnight
		{in: "24:01", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseClockTime(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTimeString(t *testing.T) {
	assert.Equal(t, "09:05", domain.NewClockTime(9, 5).String())
	assert.Equal(t, "00:00", domain.NewClockTime(0, 0).String())
	assert.Equal(t, "24:00", domain.NewClockTime(24, 0).String())
}

func TestClockTimeTextRoundTrip(t *testing.T) {
	// a midnight-ending slot window must survive the JSON boundary
	end := domain.NewClockTime(24, 0)

	data, err := end.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "24:00", string(data))

	var decoded domain.ClockTime
	require.NoError(t, decoded.UnmarshalText(data))
	assert.Equal(t, end, decoded)
}

func TestClockTimeOf(t *testing.T) {
	helsinki, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	// 08:00 UTC is 11:00 in Helsinki during DST
	utc := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.NewClockTime(8, 0), domain.ClockTimeOf(utc))
	assert.Equal(t, domain.NewClockTime(11, 0), domain.ClockTimeOf(utc.In(helsinki)))
}

func TestTimeSlotPriceContains(t *testing.T) {
	slot := domain.TimeSlotPrice{
		Begin: domain.NewClockTime(10, 0),
		End:   domain.NewClockTime(12, 0),
	}

	tests := []struct {
		name       string
		begin, end domain.ClockTime
		want       bool
	}{
		{"exact window", domain.NewClockTime(10, 0), domain.NewClockTime(12, 0), true},
		{"inside", domain.NewClockTime(10, 30), domain.NewClockTime(11, 0), true},
		{"starts before", domain.NewClockTime(9, 55), domain.NewClockTime(11, 0), false},
		{"ends after", domain.NewClockTime(11, 0), domain.NewClockTime(12, 5), false},
		{"disjoint", domain.NewClockTime(7, 0), domain.NewClockTime(8, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slot.Contains(tt.begin, tt.end))
		})
	}
}

func TestTimeSlotPriceOverlaps(t *testing.T) {
	slot := domain.TimeSlotPrice{
		Begin: domain.NewClockTime(10, 0),
		End:   domain.NewClockTime(12, 0),
	}

	other := func(begin, end domain.ClockTime) domain.TimeSlotPrice {
		return domain.TimeSlotPrice{Begin: begin, End: end}
	}

	assert.True(t, slot.Overlaps(other(domain.NewClockTime(11, 0), domain.NewClockTime(13, 0))))
	assert.True(t, slot.Overlaps(other(domain.NewClockTime(9, 0), domain.NewClockTime(10, 30))))
	assert.True(t, slot.Overlaps(other(domain.NewClockTime(10, 30), domain.NewClockTime(11, 0))))

	// half-open: touching endpoints do not overlap
	assert.False(t, slot.Overlaps(other(domain.NewClockTime(12, 0), domain.NewClockTime(13, 0))))
	assert.False(t, slot.Overlaps(other(domain.NewClockTime(9, 0), domain.NewClockTime(10, 0))))
}

func TestCheckSlotCollision(t *testing.T) {
	existing := []domain.TimeSlotPrice{
		{
			ID:    uuid.New(),
			Begin: domain.NewClockTime(10, 0),
			End:   domain.NewClockTime(12, 0),
		},
		{
			ID:         uuid.New(),
			Begin:      domain.NewClockTime(13, 0),
			End:        domain.NewClockTime(15, 0),
			IsArchived: true,
		},
	}

	tests := []struct {
		name      string
		priceType domain.PriceType
		candidate domain.TimeSlotPrice
		wantErr   error
	}{
		{
			name:      "per period, overlapping: rejected",
			priceType: domain.PricePerPeriod,
			candidate: domain.TimeSlotPrice{
				ID:    uuid.New(),
				Begin: domain.NewClockTime(11, 0),
				End:   domain.NewClockTime(13, 0),
			},
			wantErr: domain.ErrTimeSlotOverlap,
		},
		{
			name:      "per period, adjacent: ok",
			priceType: domain.PricePerPeriod,
			candidate: domain.TimeSlotPrice{
				ID:    uuid.New(),
				Begin: domain.NewClockTime(12, 0),
				End:   domain.NewClockTime(13, 0),
			},
		},
		{
			name:      "per period, overlaps only archived slot: ok",
			priceType: domain.PricePerPeriod,
			candidate: domain.TimeSlotPrice{
				ID:    uuid.New(),
				Begin: domain.NewClockTime(13, 30),
				End:   domain.NewClockTime(14, 30),
			},
		},
		{
			name:      "fixed, identical window: rejected",
			priceType: domain.PriceFixed,
			candidate: domain.TimeSlotPrice{
				ID:    uuid.New(),
				Begin: domain.NewClockTime(10, 0),
				End:   domain.NewClockTime(12, 0),
			},
			wantErr: domain.ErrTimeSlotOverlap,
		},
		{
			name:      "fixed, overlapping but not identical: ok",
			priceType: domain.PriceFixed,
			candidate: domain.TimeSlotPrice{
				ID:    uuid.New(),
				Begin: domain.NewClockTime(10, 0),
				End:   domain.NewClockTime(11, 0),
			},
		},
		{
			name:      "archived candidate is exempt",
			priceType: domain.PricePerPeriod,
			candidate: domain.TimeSlotPrice{
				ID:         uuid.New(),
				Begin:      domain.NewClockTime(10, 0),
				End:        domain.NewClockTime(12, 0),
				IsArchived: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.CheckSlotCollision(tt.priceType, existing, tt.candidate)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTimeSlotPriceValidate(t *testing.T) {
	bad := domain.TimeSlotPrice{
		Begin: domain.NewClockTime(12, 0),
		End:   domain.NewClockTime(10, 0),
	}
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvalidRange)

	empty := domain.TimeSlotPrice{
		Begin: domain.NewClockTime(10, 0),
		End:   domain.NewClockTime(10, 0),
	}
	assert.ErrorIs(t, empty.Validate(), domain.ErrInvalidRange)
}
