// Package options holds the dropdown choices shared by the forms and filters.
package options

import (
	"fmt"
	"strconv"
	"time"
)

// Option is one dropdown entry.
type Option struct {
	Index int
	Value string
}

// None is the "no selection" major, used for an absent minor.
const None = "없음"

var majors = []string{
	"철학과", "사학과", "언어인지과학과", "Global Business & Technology 학부",
	"국제금융학과", "수학과", "통계학과", "전자물리학과", "환경학과", "생명공학과",
	"화학과", "컴퓨터공학부", "정보통신공학과", "반도체전자공학부", "산업경영공학과",
	"바이오메디컬공학부", "디지털콘텐츠학부", "투어리즘 & 웰니스학부", "글로벌스포츠산업학부",
	"AI데이터융합학부", "Finance & AI융합학부", "폴란드학과", "루마니아학과",
	"체코·슬로바키아학과", "헝가리학과", "세르비아·크로아티아학과", "그리스·불가리아학과",
	"중앙아시아학과", "아프리카학부", "우크라이나학과", "한국학과", "자유전공학부(글로벌)",
	"기후변화융합학부", None,
}

// Majors lists every major, 1-indexed, ending with None.
func Majors() []Option {
	out := make([]Option, len(majors))
	for i, m := range majors {
		out[i] = Option{Index: i + 1, Value: m}
	}
	return out
}

// yearSpan is how many years the year dropdown offers, current year included.
const yearSpan = 11

// Years lists now's year and the ten before it, newest first.
func Years(now time.Time) []Option {
	y := now.Year()
	out := make([]Option, yearSpan)
	for i := range out {
		out[i] = Option{Index: i, Value: strconv.Itoa(y - i)}
	}
	return out
}

// Semesters lists "1" and "2".
func Semesters() []Option {
	return []Option{{0, "1"}, {1, "2"}}
}

// Grades lists 1학년 through 4학년.
func Grades() []Option {
	return []Option{{0, "1학년"}, {1, "2학년"}, {2, "3학년"}, {3, "4학년"}}
}

// Categories lists the course divisions.
func Categories() []Option {
	return []Option{{0, "전공"}, {1, "교양"}, {2, "기초"}}
}

// SemesterLabels lists "YYYY-S" for every year in Years, second semester first.
func SemesterLabels(now time.Time) []Option {
	var out []Option
	for _, y := range Years(now) {
		for s := 2; s >= 1; s-- {
			out = append(out, Option{Index: len(out), Value: fmt.Sprintf("%s-%d", y.Value, s)})
		}
	}
	return out
}

// ParseSemesterLabel splits "YYYY-S" into year and semester.
func ParseSemesterLabel(label string) (year, semester int, err error) {
	if _, err := fmt.Sscanf(label, "%d-%d", &year, &semester); err != nil {
		return 0, 0, fmt.Errorf("semester label %q: %w", label, err)
	}
	if year <= 0 || (semester != 1 && semester != 2) {
		return 0, 0, fmt.Errorf("semester label %q: out of range", label)
	}
	return year, semester, nil
}

// Find returns the option whose value equals v.
func Find(opts []Option, v string) (Option, bool) {
	for _, o := range opts {
		if o.Value == v {
			return o, true
		}
	}
	return Option{}, false
}
