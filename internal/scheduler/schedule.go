package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Schedules use the standard five-field cron syntax.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks that schedule is a valid five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Describe returns a human-readable description of a cron schedule.
func Describe(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "every hour at :00"
	case "*/15 * * * *":
		return "every 15 minutes"
	case "*/30 * * * *":
		return "every 30 minutes"
	case "0 */6 * * *":
		return "every 6 hours"
	case "0 0 * * *":
		return "daily at midnight"
	case "0 0 * * 0":
		return "weekly on Sunday at midnight"
	default:
		return "custom schedule " + schedule
	}
}

// NextRunTime returns the first activation of schedule after from.
func NextRunTime(schedule string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}
