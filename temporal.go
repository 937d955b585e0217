package unigraph

import (
	"fmt"
	"time"
)

// Date is a calendar date without a time zone.
type Date struct {
	Year  int32
	Month uint8
	Day   uint8
}

// Validate checks field ranges, including the number of days in the month.
func (d Date) Validate() error {
	if d.Month < 1 || d.Month > 12 {
		return Errorf(KindInvalidPropertyType, "date: month %d out of range 1-12", d.Month)
	}
	if d.Day < 1 || int(d.Day) > daysIn(time.Month(d.Month), int(d.Year)) {
		return Errorf(KindInvalidPropertyType, "date: day %d out of range for %04d-%02d", d.Day, d.Year, d.Month)
	}
	return nil
}

// String returns the ISO-8601 form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Std returns the date as a UTC midnight time.Time.
func (d Date) Std() time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
}

// DateOf returns the date part of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: int32(y), Month: uint8(m), Day: uint8(d)}
}

// Time is a time of day without a time zone.
type Time struct {
	Hour       uint8
	Minute     uint8
	Second     uint8
	Nanosecond uint32
}

// Validate checks field ranges.
func (t Time) Validate() error {
	switch {
	case t.Hour > 23:
		return Errorf(KindInvalidPropertyType, "time: hour %d out of range 0-23", t.Hour)
	case t.Minute > 59:
		return Errorf(KindInvalidPropertyType, "time: minute %d out of range 0-59", t.Minute)
	case t.Second > 59:
		return Errorf(KindInvalidPropertyType, "time: second %d out of range 0-59", t.Second)
	case t.Nanosecond > 999_999_999:
		return Errorf(KindInvalidPropertyType, "time: nanosecond %d out of range", t.Nanosecond)
	}
	return nil
}

// String returns the ISO-8601 form.
func (t Time) String() string {
	if t.Nanosecond == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour, t.Minute, t.Second, t.Nanosecond)
}

// TimeOf returns the time-of-day part of t.
func TimeOf(t time.Time) Time {
	return Time{Hour: uint8(t.Hour()), Minute: uint8(t.Minute()), Second: uint8(t.Second()), Nanosecond: uint32(t.Nanosecond())}
}

// maxOffsetMinutes bounds UTC offsets to +/-18 hours.
const maxOffsetMinutes = 18 * 60

// Datetime is a date and a time of day with an optional UTC offset in minutes.
// A nil Offset denotes a local (zone-less) datetime.
type Datetime struct {
	Date   Date
	Time   Time
	Offset *int16
}

// Validate checks field ranges.
func (dt Datetime) Validate() error {
	if err := dt.Date.Validate(); err != nil {
		return err
	}
	if err := dt.Time.Validate(); err != nil {
		return err
	}
	if dt.Offset != nil && (*dt.Offset > maxOffsetMinutes || *dt.Offset < -maxOffsetMinutes) {
		return Errorf(KindInvalidPropertyType, "datetime: offset %d minutes out of range", *dt.Offset)
	}
	return nil
}

// String returns the ISO-8601 form.
func (dt Datetime) String() string {
	s := dt.Date.String() + "T" + dt.Time.String()
	if dt.Offset == nil {
		return s
	}
	off := int(*dt.Offset)
	if off == 0 {
		return s + "Z"
	}
	sign := '+'
	if off < 0 {
		sign, off = '-', -off
	}
	return fmt.Sprintf("%s%c%02d:%02d", s, sign, off/60, off%60)
}

// Std converts the datetime to a time.Time. Local datetimes are placed in UTC.
func (dt Datetime) Std() time.Time {
	loc := time.UTC
	if dt.Offset != nil && *dt.Offset != 0 {
		loc = time.FixedZone("", int(*dt.Offset)*60)
	}
	return time.Date(int(dt.Date.Year), time.Month(dt.Date.Month), int(dt.Date.Day),
		int(dt.Time.Hour), int(dt.Time.Minute), int(dt.Time.Second), int(dt.Time.Nanosecond), loc)
}

// DatetimeOf returns the datetime of t with t's offset.
func DatetimeOf(t time.Time) Datetime {
	_, secs := t.Zone()
	off := int16(secs / 60)
	return Datetime{Date: DateOf(t), Time: TimeOf(t), Offset: &off}
}

// LocalDatetimeOf returns the datetime of t without an offset.
func LocalDatetimeOf(t time.Time) Datetime {
	return Datetime{Date: DateOf(t), Time: TimeOf(t)}
}

// Duration is an elapsed time in seconds and nanoseconds.
type Duration struct {
	Seconds     int64
	Nanoseconds uint32
}

// Validate checks field ranges.
func (d Duration) Validate() error {
	if d.Nanoseconds > 999_999_999 {
		return Errorf(KindInvalidPropertyType, "duration: nanoseconds %d out of range", d.Nanoseconds)
	}
	return nil
}

// Std converts the duration to a time.Duration, saturating on overflow.
func (d Duration) Std() time.Duration {
	const maxSecs = int64(1<<63-1) / int64(time.Second)
	switch {
	case d.Seconds > maxSecs:
		return time.Duration(1<<63 - 1)
	case d.Seconds < -maxSecs:
		return time.Duration(-1 << 63)
	}
	return time.Duration(d.Seconds)*time.Second + time.Duration(d.Nanoseconds)
}

// String returns the ISO-8601 duration form, e.g. PT90.5S.
func (d Duration) String() string {
	if d.Nanoseconds == 0 {
		return fmt.Sprintf("PT%dS", d.Seconds)
	}
	return fmt.Sprintf("PT%d.%09dS", d.Seconds, d.Nanoseconds)
}

// DurationOf converts a time.Duration.
func DurationOf(d time.Duration) Duration {
	secs := int64(d / time.Second)
	nanos := int64(d % time.Second)
	if nanos < 0 {
		secs--
		nanos += int64(time.Second)
	}
	return Duration{Seconds: secs, Nanoseconds: uint32(nanos)}
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
