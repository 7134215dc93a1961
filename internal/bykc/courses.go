package bykc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/boya-scheduler/internal/course"
	"github.com/example/boya-scheduler/internal/errs"
)

const timeLayout = "2006-01-02 15:04:05"

type courseDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"courseName"`
	Position     string `json:"coursePosition"`
	Teacher      string `json:"courseTeacher"`
	Campus       string `json:"courseCampus"`
	MaxCount     int    `json:"courseMaxCount"`
	CurrentCount int    `json:"courseCurrentCount"`
	SelectStart  string `json:"courseSelectStartDate"`
	SelectEnd    string `json:"courseSelectEndDate"`
	CourseStart  string `json:"courseStartDate"`
	CourseEnd    string `json:"courseEndDate"`
}

type pageDTO struct {
	Content []courseDTO `json:"content"`
}

// QueryOfferings returns every offering of the current semester.
func (c *Client) QueryOfferings(ctx context.Context, token string) ([]course.Offering, error) {
	data, err := c.call(ctx, "/sscv/queryStudentSemesterCourseByPage", token, map[string]int{
		"pageNumber": 1,
		"pageSize":   200,
	})
	if err != nil {
		return nil, err
	}
	var page pageDTO
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, errs.Wrap(err, "decode course page")
	}

	out := make([]course.Offering, 0, len(page.Content))
	for _, d := range page.Content {
		o, err := c.toOffering(d)
		if err != nil {
			return nil, errs.Wrapf(err, "course %d", d.ID)
		}
		out = append(out, o)
	}
	return out, nil
}

// Select reserves a seat in the offering.
func (c *Client) Select(ctx context.Context, id int64, token string) error {
	_, err := c.call(ctx, "/sscv/choseCourse", token, map[string]int64{"courseId": id})
	return err
}

// Drop cancels a reservation.
func (c *Client) Drop(ctx context.Context, id int64, token string) error {
	_, err := c.call(ctx, "/sscv/delChosenCourse", token, map[string]int64{"id": id})
	return err
}

func (c *Client) toOffering(d courseDTO) (course.Offering, error) {
	var (
		o   course.Offering
		err error
	)
	o.ID = d.ID
	o.Name = d.Name
	o.Position = d.Position
	o.Teacher = d.Teacher
	o.Campus = d.Campus
	o.Capacity = course.Capacity{Current: d.CurrentCount, Max: d.MaxCount}
	if o.Window.Open, err = c.parseTime(d.SelectStart); err != nil {
		return o, err
	}
	if o.Window.Close, err = c.parseTime(d.SelectEnd); err != nil {
		return o, err
	}
	if o.Starts, err = c.parseTime(d.CourseStart); err != nil {
		return o, err
	}
	if o.Ends, err = c.parseTime(d.CourseEnd); err != nil {
		return o, err
	}
	return o, nil
}

// parseTime reads a server timestamp in the server's zone. Empty values
// stay zero.
func (c *Client) parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(timeLayout, s, c.loc)
}
