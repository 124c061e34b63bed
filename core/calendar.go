package core

import "time"

// MonthGrid is the calendar layout of one month, weeks starting on Sunday.
type MonthGrid struct {
	Year  int
	Month time.Month
	// Leading is the number of blank cells before day 1.
	Leading int
	Days    int
}

func NewMonthGrid(year int, month time.Month) MonthGrid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return MonthGrid{
		Year:    year,
		Month:   month,
		Leading: int(first.Weekday()),
		Days:    last.Day(),
	}
}

// Weeks returns the grid row by row; blank cells are 0.
func (g MonthGrid) Weeks() [][7]int {
	var weeks [][7]int
	var week [7]int
	col := g.Leading
	for day := 1; day <= g.Days; day++ {
		week[col] = day
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = [7]int{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}
