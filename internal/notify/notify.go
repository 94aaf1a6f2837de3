// Package notify writes Notification documents to an audience. Delivery is best effort: failures
// are logged and never returned to the caller.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"elearning/internal/models"
	"elearning/internal/repository"
)

type audienceKind int

const (
	recipientAudience audienceKind = iota
	classesAudience
	adminsAudience
)

// Audience is who a notification goes to.
type Audience struct {
	kind      audienceKind
	recipient string
	classes   []string
}

// Recipient addresses a single user.
func Recipient(userID string) Audience {
	return Audience{kind: recipientAudience, recipient: userID}
}

// Classes addresses every student whose class is one of names.
func Classes(names ...string) Audience {
	return Audience{kind: classesAudience, classes: names}
}

// Admins addresses every administrator.
func Admins() Audience {
	return Audience{kind: adminsAudience}
}

// Report tells which recipients were attempted and which writes failed.
type Report struct {
	Attempted []string
	Failed    []string
}

// Delivered is the number of notifications written.
func (r *Report) Delivered() int {
	return len(r.Attempted) - len(r.Failed)
}

type Notifier struct {
	repository *repository.Repository
	now        func() time.Time
}

func New(r *repository.Repository) *Notifier {
	return &Notifier{repository: r, now: time.Now}
}

// Notify writes one unread notification per resolved recipient. Each write is attempted
// independently of the others.
func (n *Notifier) Notify(ctx context.Context, audience Audience, title, message string, notificationType models.NotificationType) *Report {
	report := &Report{}

	for _, userID := range n.resolve(ctx, audience) {
		report.Attempted = append(report.Attempted, userID)

		_, err := n.repository.AddNotification(ctx, &models.Notification{
			UserID:    userID,
			Title:     title,
			Message:   message,
			Type:      notificationType,
			Read:      false,
			CreatedAt: n.now(),
		})
		if err != nil {
			glog.Warningf("error sending %s notification to %s: %v", notificationType, userID, err)
			report.Failed = append(report.Failed, userID)
		}
	}

	return report
}

// resolve returns the audience's user IDs. Read failures resolve to no recipients.
func (n *Notifier) resolve(ctx context.Context, audience Audience) []string {
	var profiles []*models.UserProfile

	switch audience.kind {
	case recipientAudience:
		profile, err := n.repository.GetUserProfile(ctx, audience.recipient)
		if err != nil {
			glog.Warningf("not notifying %s: %v", audience.recipient, err)
			return nil
		}
		profiles = append(profiles, profile)
	case classesAudience:
		targets := make(map[string]bool, len(audience.classes))
		for _, name := range audience.classes {
			targets[name] = true
		}
		for _, student := range n.repository.ListUserProfilesWhere(ctx, "role", string(models.RoleStudent)) {
			if student.ClassID != "" && targets[student.ClassID] {
				profiles = append(profiles, student)
			}
		}
	case adminsAudience:
		profiles = n.repository.ListUserProfilesWhere(ctx, "role", string(models.RoleAdmin))
	}

	seen := make(map[string]bool, len(profiles))
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if !seen[p.ID] {
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Messages

func (n *Notifier) NewMaterial(ctx context.Context, m *models.Material) *Report {
	return n.Notify(ctx, Classes(m.TargetClassIDs...), "Materi Baru!",
		fmt.Sprintf("Guru telah mempublikasikan materi: %s", m.Title), models.NotificationMaterial)
}

func (n *Notifier) NewTask(ctx context.Context, t *models.Task) *Report {
	return n.Notify(ctx, Classes(t.TargetClassIDs...), "Tugas Baru!",
		fmt.Sprintf("Ada tugas baru: %s. Segera kerjakan sebelum tenggat!", t.Title), models.NotificationTask)
}

func (n *Notifier) Graded(ctx context.Context, studentID string, grade int) *Report {
	return n.Notify(ctx, Recipient(studentID), "Tugas Telah Dinilai!",
		fmt.Sprintf("Tugas Anda telah dinilai dengan skor %d.", grade), models.NotificationGrade)
}

func (n *Notifier) NewRegistration(ctx context.Context, name, classID string) *Report {
	return n.Notify(ctx, Admins(), "Pendaftaran Siswa Baru",
		fmt.Sprintf("%s (Kelas %s) telah mendaftar. Mohon segera verifikasi akun tersebut.", name, classID), models.NotificationRegistration)
}

func (n *Notifier) Approved(ctx context.Context, studentID string) *Report {
	return n.Notify(ctx, Recipient(studentID), "Akun Aktif!",
		"Selamat, pendaftaran Anda telah disetujui Guru Informatika. Silakan login.", models.NotificationRegistration)
}
