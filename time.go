package dtanet

import (
	"fmt"
	"strconv"
	"strings"
)

// Time is a clock time value: number of seconds after midnight
type Time int

// NewTime returns time value for given hour, minute and second
func NewTime(hour, minute, second int) Time {
	return Time(hour*3600 + minute*60 + second)
}

// TimeFromMinutes returns time value for given number of minutes after midnight
func TimeFromMinutes(minutes int) Time {
	return Time(minutes * 60)
}

// ParseTime parses "HH:MM" or "HH:MM:SS"
func ParseTime(s string) (Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, dtaErrorf("can't parse time '%s': expected HH:MM or HH:MM:SS", s)
	}
	values := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return 0, dtaErrorf("can't parse time '%s': bad field '%s'", s, part)
		}
		values[i] = v
	}
	if values[1] >= 60 || values[2] >= 60 {
		return 0, dtaErrorf("can't parse time '%s': minutes and seconds must be less than 60", s)
	}
	return NewTime(values[0], values[1], values[2]), nil
}

func (t Time) Hour() int {
	return int(t) / 3600
}

func (t Time) Minute() int {
	return (int(t) % 3600) / 60
}

func (t Time) Second() int {
	return int(t) % 60
}

// InMinutes returns time as number of minutes after midnight
func (t Time) InMinutes() float64 {
	return float64(t) / 60.0
}

func (t Time) AddMinutes(minutes int) Time {
	return t + Time(minutes*60)
}

func (t Time) AddSeconds(seconds int) Time {
	return t + Time(seconds)
}

// Sub returns difference t - other in minutes
func (t Time) Sub(other Time) float64 {
	return float64(t-other) / 60.0
}

// String returns "HH:MM"
func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// StringWithSeconds returns "HH:MM:SS"
func (t Time) StringWithSeconds() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}
