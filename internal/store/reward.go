package store

import (
	"database/sql"
	"fmt"

	"github.com/askelund/dagsplan/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var isActive, claimed int

	err := scanner.Scan(
		&r.ID, &r.ChildID, &r.Title, &r.Description, &r.Icon,
		&r.PointsRequired, &isActive, &claimed, &r.AudioURL, &r.ImageURL, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.IsActive = isActive != 0
	r.Claimed = claimed != 0
	return &r, nil
}

const rewardCols = `id, child_id, title, description, icon, points_required, is_active, claimed, audio_url, image_url, created_at`

func (s *RewardStore) Create(childID int64, title, description, icon string, pointsRequired int, audioURL, imageURL string) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (child_id, title, description, icon, points_required, audio_url, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		childID, title, description, icon, pointsRequired, audioURL, imageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListByChild returns all rewards for a child, active first, then by title.
func (s *RewardStore) ListByChild(childID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(
		`SELECT `+rewardCols+` FROM rewards WHERE child_id = ? ORDER BY is_active DESC, title`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()
	return collectRewards(rows)
}

// ListClaimable returns the rewards a child can currently see and claim:
// active and not yet claimed.
func (s *RewardStore) ListClaimable(childID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(
		`SELECT `+rewardCols+` FROM rewards WHERE child_id = ? AND is_active = 1 AND claimed = 0 ORDER BY points_required`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claimable rewards: %w", err)
	}
	defer rows.Close()
	return collectRewards(rows)
}

func collectRewards(rows *sql.Rows) ([]model.Reward, error) {
	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, title, description, icon string, pointsRequired int, audioURL, imageURL string) (*model.Reward, error) {
	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, icon = ?, points_required = ?, audio_url = ?, image_url = ?
		 WHERE id = ?`,
		title, description, icon, pointsRequired, audioURL, imageURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

// MarkGiven deactivates a reward once the parent has physically handed it
// over. The claimed flag is left as-is.
func (s *RewardStore) MarkGiven(id int64) (*model.Reward, error) {
	_, err := s.db.Exec(`UPDATE rewards SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("mark reward given: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}
