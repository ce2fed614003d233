// Package ledger owns every mutation of a child's point balance: crediting
// bonus-activity completions and deducting reward redemptions. Both paths run
// as single database transactions so a balance can neither be double-credited
// by a repeated completion nor driven negative by concurrent redemptions.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/askelund/dagsplan/internal/model"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrNotAssigned        = errors.New("activity is not assigned to this child")
	ErrAlreadyCompleted   = errors.New("activity is already completed")
	ErrNotClaimable       = errors.New("reward is not claimable")
	ErrInsufficientPoints = errors.New("not enough points")
)

// Notifier delivers the parent-facing redemption notice. Delivery is
// best-effort: failures are logged, never surfaced to the child.
type Notifier interface {
	SendRedemptionNotice(toEmail, childName, rewardTitle string, pointsSpent, pointsLeft int) error
}

type Service struct {
	db       *sql.DB
	notifier Notifier
	logger   *slog.Logger
}

// New creates a ledger service. notifier may be nil to disable notices.
func New(db *sql.DB, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, notifier: notifier, logger: logger}
}

// Completion is the outcome of a child completing an activity.
type Completion struct {
	Activity       model.Activity `json:"activity"`
	PointsEarned   int            `json:"points_earned"`
	PointsTotalNow int            `json:"points_total_now"`
}

// CompleteActivity marks an activity completed on behalf of a child and, for
// a bonus activity, credits its points to the child's balance. The false→true
// transition is guarded inside the transaction, so re-invoking completion on
// an already-completed activity returns ErrAlreadyCompleted instead of
// crediting twice.
func (s *Service) CompleteActivity(activityID, childID int64) (*Completion, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var a model.Activity
	var completed int
	var seriesID sql.NullString
	err = tx.QueryRow(
		`SELECT id, child_id, title, activity_type, points, completed, series_id, date, time
		 FROM activities WHERE id = ?`, activityID,
	).Scan(&a.ID, &a.ChildID, &a.Title, &a.ActivityType, &a.Points, &completed, &seriesID, &a.Date, &a.Time)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a.ChildID != childID {
		return nil, ErrNotAssigned
	}

	result, err := tx.Exec(
		`UPDATE activities SET completed = 1 WHERE id = ? AND completed = 0`,
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrAlreadyCompleted
	}
	a.Completed = true

	credit := 0
	if a.ActivityType == model.ActivityTypeBonus && a.Points > 0 {
		credit = a.Points
		if _, err := tx.Exec(
			`UPDATE children SET total_points = total_points + ? WHERE id = ?`,
			credit, childID,
		); err != nil {
			return nil, fmt.Errorf("credit points: %w", err)
		}
	}

	var total int
	if err := tx.QueryRow(`SELECT total_points FROM children WHERE id = ?`, childID).Scan(&total); err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if seriesID.Valid {
		a.SeriesID = seriesID.String
	}
	return &Completion{Activity: a, PointsEarned: credit, PointsTotalNow: total}, nil
}

// Redemption is the outcome of a child claiming a reward.
type Redemption struct {
	Reward         model.Reward `json:"reward"`
	PointsSpent    int          `json:"points_spent"`
	PointsTotalNow int          `json:"points_total_now"`
}

// RedeemReward claims a reward for a child, deducting its cost from the
// child's balance. The deduction is a conditional update on the current
// balance, so two racing redemptions cannot spend the same points. After the
// transaction commits, the parent is notified by email; a failed notice is
// logged and swallowed.
func (s *Service) RedeemReward(rewardID, childID int64) (*Redemption, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var r model.Reward
	var isActive, claimed int
	err = tx.QueryRow(
		`SELECT id, child_id, title, points_required, is_active, claimed FROM rewards WHERE id = ?`,
		rewardID,
	).Scan(&r.ID, &r.ChildID, &r.Title, &r.PointsRequired, &isActive, &claimed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	if r.ChildID != childID {
		return nil, ErrNotFound
	}
	if isActive == 0 || claimed != 0 {
		return nil, ErrNotClaimable
	}

	result, err := tx.Exec(
		`UPDATE children SET total_points = total_points - ? WHERE id = ? AND total_points >= ?`,
		r.PointsRequired, childID, r.PointsRequired,
	)
	if err != nil {
		return nil, fmt.Errorf("deduct points: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrInsufficientPoints
	}

	if _, err := tx.Exec(`UPDATE rewards SET claimed = 1 WHERE id = ?`, rewardID); err != nil {
		return nil, fmt.Errorf("mark claimed: %w", err)
	}
	r.IsActive = true
	r.Claimed = true

	var total int
	var childName string
	var parentEmail string
	err = tx.QueryRow(
		`SELECT c.total_points, c.display_name, u.email
		 FROM children c JOIN users u ON u.id = c.parent_id
		 WHERE c.id = ?`, childID,
	).Scan(&total, &childName, &parentEmail)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if s.notifier != nil && parentEmail != "" {
		if err := s.notifier.SendRedemptionNotice(parentEmail, childName, r.Title, r.PointsRequired, total); err != nil {
			s.logger.Warn("redemption notice failed", "reward_id", rewardID, "error", err)
		}
	}

	return &Redemption{Reward: r, PointsSpent: r.PointsRequired, PointsTotalNow: total}, nil
}
