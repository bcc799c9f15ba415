package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"examist/internal/blob"
)

// Dataset is a complete archive snapshot used to seed a backend.
type Dataset struct {
	Courses   []Course
	Papers    []Paper
	Questions []Question
	Comments  []Comment
	Users     []User
}

// DemoPassword signs in every user of the demo dataset.
const DemoPassword = "examist"

// Demo returns a small archive: three courses, their papers and questions, a
// comment thread and one demo user (demo@examist.ie).
func Demo() Dataset {
	hash, err := HashPassword(DemoPassword, bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("hash demo password: %v", err))
	}
	created := time.Date(2016, time.March, 14, 9, 0, 0, 0, time.UTC)
	return Dataset{
		Courses: []Course{
			{ID: 1, Code: "CT101", Name: "Computing Systems"},
			{ID: 2, Code: "MA100", Name: "Calculus"},
			{ID: 3, Code: "CT470", Name: "Software Engineering"},
		},
		Papers: []Paper{
			{ID: 10, CourseID: 1, Name: "Computing Systems", Period: "summer", Sitting: 1, YearStart: 2014, YearStop: 2015, Link: "https://archive.example.ie/CT101/2014/summer.pdf"},
			{ID: 11, CourseID: 1, Name: "Computing Systems", Period: "autumn", Sitting: 2, YearStart: 2014, YearStop: 2015, Link: "https://archive.example.ie/CT101/2014/autumn.pdf"},
			{ID: 12, CourseID: 1, Name: "Computing Systems", Period: "summer", Sitting: 1, YearStart: 2015, YearStop: 2016, Link: "https://archive.example.ie/CT101/2015/summer.pdf"},
			{ID: 13, CourseID: 2, Name: "Calculus", Period: "winter", Sitting: 1, YearStart: 2015, YearStop: 2016, Link: "https://archive.example.ie/MA100/2015/winter.pdf"},
		},
		Questions: []Question{
			{ID: 100, PaperID: 10, Index: 1, Path: []int{1}, Content: "Describe the fetch-execute cycle.", Marks: 20},
			{ID: 101, PaperID: 10, ParentID: 100, Index: 1, Path: []int{1, 1}, Content: "What is the role of the program counter?", Marks: 5},
			{ID: 102, PaperID: 10, Index: 2, Path: []int{2}, Content: "Convert 173 to binary and hexadecimal.", Marks: 10},
			{ID: 103, PaperID: 12, Index: 1, Path: []int{1}, Content: "Explain two's complement.", Marks: 15},
			{ID: 104, PaperID: 13, Index: 1, Path: []int{1}, Content: "Differentiate x^2 sin x.", Marks: 10},
		},
		Comments: []Comment{
			{ID: 1000, EntityID: 100, UserID: 1, Content: "Draw the datapath first.", CreatedAt: created},
			{ID: 1001, EntityID: 100, UserID: 1, ParentID: 1000, Content: "Lecture 4 covers this.", CreatedAt: created.Add(time.Hour)},
			{ID: 1002, EntityID: 102, UserID: 1, Content: "10101101 and AD.", CreatedAt: created.Add(2 * time.Hour)},
		},
		Users: []User{
			{ID: 1, Name: "Demo Student", Email: "demo@examist.ie", PasswordHash: hash, Courses: []int64{1, 2}},
		},
	}
}

// SeedDocuments stores a placeholder PDF for every paper of ds that has no
// document yet.
func SeedDocuments(ctx context.Context, docs blob.Store, ds Dataset) error {
	codes := make(map[int64]string, len(ds.Courses))
	for _, c := range ds.Courses {
		codes[c.ID] = c.Code
	}
	for _, p := range ds.Papers {
		key := blob.PaperKey(codes[p.CourseID], p.YearStart, p.Period)
		body := fmt.Sprintf("%%PDF-1.4\n%% %s %d %s\n", codes[p.CourseID], p.YearStart, p.Period)
		_, err := docs.Put(ctx, key, bytes.NewReader([]byte(body)), blob.PutOptions{
			ContentType: "application/pdf",
			Metadata:    map[string]string{"course": codes[p.CourseID]},
		})
		if err != nil && !errors.Is(err, blob.ErrExists) {
			return fmt.Errorf("seed %s: %w", key, err)
		}
	}
	return nil
}
