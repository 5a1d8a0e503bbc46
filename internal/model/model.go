// Package model declares the persisted entities.
package model

import "time"

// User is a Telegram account that has contacted the bot.
type User struct {
	ID      int64 `db:"id"`
	TgID    int64 `db:"tg_id"`
	IsAdmin bool  `db:"is_admin"`
}

// Subject groups labs of one course.
type Subject struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Lab is an assignment published under a subject.
// Deadline is free-form text as typed by the admin.
type Lab struct {
	ID        int64   `db:"id"`
	SubjectID int64   `db:"subject_id"`
	Title     string  `db:"title"`
	Desc      *string `db:"description"`
	Deadline  *string `db:"deadline"`
}

// LabFile is an attachment staged on local disk.
type LabFile struct {
	ID         int64     `db:"id"`
	LabID      int64     `db:"lab_id"`
	FileName   string    `db:"file_name"`
	FilePath   string    `db:"file_path"`
	FileSize   int64     `db:"file_size"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// SubjectLabs pairs a subject with its labs for overview screens.
type SubjectLabs struct {
	Subject Subject
	Labs    []Lab
}
