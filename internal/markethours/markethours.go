package markethours

import (
	"time"
	_ "time/tzdata"
)

const dateLayout = "2006-01-02"

var nyse = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// ExchangeTime converts t to the exchange's local clock.
func ExchangeTime(t time.Time) time.Time {
	return t.In(nyse)
}

// HolidayName returns the holiday observed on t's exchange date, if any.
func HolidayName(t time.Time) (string, bool) {
	name, ok := holidays[ExchangeTime(t).Format(dateLayout)]
	return name, ok
}

// IsTradingDay reports whether the exchange opens at all on t's date.
func IsTradingDay(t time.Time) bool {
	day := ExchangeTime(t)
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := HolidayName(day)
	return !holiday
}

// NextTradingDay walks forward from t to the next date the exchange opens.
func NextTradingDay(t time.Time) time.Time {
	day := ExchangeTime(t).AddDate(0, 0, 1)
	for !IsTradingDay(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
