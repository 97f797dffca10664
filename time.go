package webpki

import "github.com/luoffei/webpki/der"

// Time is a count of non-leap seconds since the start of 1970, used
// throughout path validation in place of time.Time so that validity
// comparisons are unit-of-measure correct and never depend on the
// host's monotonic clock or location database.
type Time uint64

// NewTime constructs a Time from a UNIX timestamp.
func NewTime(secsSinceUnixEpoch uint64) Time { return Time(secsSinceUnixEpoch) }

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool { return t < u }

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool { return t > u }

// readTimeFromDER reads a DER UTCTime or GeneralizedTime value from r
// and converts it to a Time. Which tag is expected is determined by
// peeking: X.509 validity fields use UTCTime for years [1950,2049] and
// GeneralizedTime otherwise, and a conforming encoder never mixes the
// two within a single value.
func readTimeFromDER(r *der.Reader) (Time, error) {
	tag, ok := r.PeekTag()
	if !ok {
		return 0, ErrBadDerTime
	}
	isUTCTime := tag == der.TagUTCTime
	wantTag := der.TagGeneralizedTime
	if isUTCTime {
		wantTag = der.TagUTCTime
	}

	return der.ReadNested(r, wantTag, der.KindTime, func(value *der.Reader) (Time, error) {
		return parseTimeBody(value, isUTCTime)
	})
}

// parseTimeBody parses the digits-and-'Z' content of a UTCTime or
// GeneralizedTime value (the tag and length have already been
// consumed): YYMMDDHHMMSSZ or YYYYMMDDHHMMSSZ respectively.
func parseTimeBody(value *der.Reader, isUTCTime bool) (Time, error) {
	var yearHi, yearLo uint64
	var err error
	if isUTCTime {
		lo, err := readTwoDigits(value, 0, 99)
		if err != nil {
			return 0, err
		}
		hi := uint64(20)
		if lo >= 50 {
			hi = 19
		}
		yearHi, yearLo = hi, lo
	} else {
		yearHi, err = readTwoDigits(value, 0, 99)
		if err != nil {
			return 0, err
		}
		yearLo, err = readTwoDigits(value, 0, 99)
		if err != nil {
			return 0, err
		}
	}

	year := (yearHi * 100) + yearLo
	month, err := readTwoDigits(value, 1, 12)
	if err != nil {
		return 0, err
	}
	maxDay := DaysInMonth(year, month)
	dayOfMonth, err := readTwoDigits(value, 1, maxDay)
	if err != nil {
		return 0, err
	}
	hours, err := readTwoDigits(value, 0, 23)
	if err != nil {
		return 0, err
	}
	minutes, err := readTwoDigits(value, 0, 59)
	if err != nil {
		return 0, err
	}
	seconds, err := readTwoDigits(value, 0, 59)
	if err != nil {
		return 0, err
	}

	zone, err := readRawByte(value)
	if err != nil {
		return 0, ErrBadDerTime
	}
	if zone != 'Z' {
		return 0, ErrBadDerTime
	}

	return TimeFromYMDHMSUTC(year, month, dayOfMonth, hours, minutes, seconds)
}

func readRawByte(r *der.Reader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, ErrBadDerTime
	}
	return b, nil
}

// TimeFromYMDHMSUTC converts already-validated civil calendar fields
// (UTC, no leap seconds) to a Time. year must be >= 1970; month in
// [1,12]; day_of_month must already have been checked against
// DaysInMonth(year, month) by the caller.
func TimeFromYMDHMSUTC(year, month, dayOfMonth, hours, minutes, seconds uint64) (Time, error) {
	daysBeforeYear, err := daysBeforeYearSinceUnixEpoch(year)
	if err != nil {
		return 0, err
	}

	const (
		jan = 31
		mar = 31
		apr = 30
		may = 31
		jun = 30
		jul = 31
		aug = 31
		sep = 30
		oct = 31
		nov = 30
	)
	feb := daysInFeb(year)

	var daysBeforeMonth uint64
	switch month {
	case 1:
		daysBeforeMonth = 0
	case 2:
		daysBeforeMonth = jan
	case 3:
		daysBeforeMonth = jan + feb
	case 4:
		daysBeforeMonth = jan + feb + mar
	case 5:
		daysBeforeMonth = jan + feb + mar + apr
	case 6:
		daysBeforeMonth = jan + feb + mar + apr + may
	case 7:
		daysBeforeMonth = jan + feb + mar + apr + may + jun
	case 8:
		daysBeforeMonth = jan + feb + mar + apr + may + jun + jul
	case 9:
		daysBeforeMonth = jan + feb + mar + apr + may + jun + jul + aug
	case 10:
		daysBeforeMonth = jan + feb + mar + apr + may + jun + jul + aug + sep
	case 11:
		daysBeforeMonth = jan + feb + mar + apr + may + jun + jul + aug + sep + oct
	case 12:
		daysBeforeMonth = jan + feb + mar + apr + may + jun + jul + aug + sep + oct + nov
	default:
		return 0, ErrBadDerTime
	}

	daysBefore := daysBeforeYear + daysBeforeMonth + dayOfMonth - 1
	secs := (daysBefore * 24 * 60 * 60) + (hours * 60 * 60) + (minutes * 60) + seconds
	return Time(secs), nil
}

const unixEpochYear = 1970

// daysBeforeUnixEpochAD is every day up to and including 1969, plus
// the 477 leap days since AD began under Gregorian rules.
const daysBeforeUnixEpochAD = 1969*365 + 477

func daysBeforeYearSinceUnixEpoch(year uint64) (uint64, error) {
	if year < unixEpochYear {
		return 0, ErrBadDerTime
	}
	return daysBeforeYearAD(year) - daysBeforeUnixEpochAD, nil
}

func daysBeforeYearAD(year uint64) uint64 {
	return ((year - 1) * 365) +
		((year - 1) / 4) -
		((year - 1) / 100) +
		((year - 1) / 400)
}

// DaysInMonth returns the number of days in month (1-12) of year,
// following the proleptic Gregorian calendar.
func DaysInMonth(year, month uint64) uint64 {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		return daysInFeb(year)
	default:
		return 0
	}
}

func daysInFeb(year uint64) uint64 {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 29
	}
	return 28
}

func readTwoDigits(r *der.Reader, min, max uint64) (uint64, error) {
	hi, err := readDecimalDigit(r)
	if err != nil {
		return 0, err
	}
	lo, err := readDecimalDigit(r)
	if err != nil {
		return 0, err
	}
	v := hi*10 + lo
	if v < min || v > max {
		return 0, ErrBadDerTime
	}
	return v, nil
}

func readDecimalDigit(r *der.Reader) (uint64, error) {
	b, err := readRawByte(r)
	if err != nil {
		return 0, ErrBadDerTime
	}
	if b < '0' || b > '9' {
		return 0, ErrBadDerTime
	}
	return uint64(b - '0'), nil
}
