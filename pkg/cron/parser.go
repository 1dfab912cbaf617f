package cron

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidCronExpression = errors.New("invalid cron expression")

// parser accepts five-field expressions and descriptors such as @hourly or
// @every 30s.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type CronSchedule struct {
	expr string
	spec cron.Schedule
}

func ParseCronExpression(expr string) (*CronSchedule, error) {
	if expr == "" {
		return nil, ErrInvalidCronExpression
	}

	spec, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronExpression, err)
	}

	return &CronSchedule{
		expr: expr,
		spec: spec,
	}, nil
}

func ValidateCronExpression(expr string) error {
	_, err := ParseCronExpression(expr)

	return err
}

func (s *CronSchedule) String() string {
	if s == nil {
		return ""
	}

	return s.expr
}

// CalculateNextRun returns the first activation after from in the given
// timezone. Unknown timezones fall back to UTC.
func CalculateNextRun(schedule *CronSchedule, from time.Time, timezone string) time.Time {
	if schedule == nil || schedule.spec == nil {
		return time.Time{}
	}

	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			loc = time.UTC
		}
	}

	return schedule.spec.Next(from.In(loc))
}
