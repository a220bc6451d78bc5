package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/posemap/internal/humanoid"
	"github.com/banshee-data/posemap/internal/posemap"
)

// Run is one invocation of the mapper over a batch of images.
type Run struct {
	ID         string
	StartedAt  time.Time
	ConfigJSON string
}

// Result is one stored image outcome. Vector and Defaulted are zero when
// Detected is false.
type Result struct {
	ID        int64
	RunID     string
	ImagePath string
	Detected  bool
	Vector    humanoid.Vector
	Defaulted [humanoid.NumJoints]bool
	CreatedAt time.Time
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9))
}

// DefaultedMask packs a Defaulted array into bits, joint i at bit i.
func DefaultedMask(d [humanoid.NumJoints]bool) int64 {
	var mask int64
	for i, set := range d {
		if set {
			mask |= 1 << i
		}
	}
	return mask
}

// UnpackDefaultedMask is the inverse of DefaultedMask.
func UnpackDefaultedMask(mask int64) [humanoid.NumJoints]bool {
	var d [humanoid.NumJoints]bool
	for i := range d {
		d[i] = mask&(1<<i) != 0
	}
	return d
}

// StartRun records a new run. config is stored as JSON; nil stores "{}".
func (db *DB) StartRun(config any) (Run, error) {
	cfgJSON := []byte("{}")
	if config != nil {
		var err error
		if cfgJSON, err = json.Marshal(config); err != nil {
			return Run{}, fmt.Errorf("failed to marshal run config: %w", err)
		}
	}

	run := Run{ID: uuid.NewString(), StartedAt: time.Now(), ConfigJSON: string(cfgJSON)}
	_, err := db.Exec(
		`INSERT INTO pose_runs (run_id, started_at, config_json) VALUES (?, ?, ?)`,
		run.ID, unixSeconds(run.StartedAt), run.ConfigJSON,
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	diagf("started run %s", run.ID)
	return run, nil
}

// RecordResult stores the mapping outcome for one image and returns its id.
func (db *DB) RecordResult(runID, imagePath string, r posemap.Result) (int64, error) {
	var vecJSON sql.NullString
	var mask int64
	if v, ok := r.Get(); ok {
		b, err := json.Marshal(v.Slice())
		if err != nil {
			return 0, fmt.Errorf("failed to marshal joint vector: %w", err)
		}
		vecJSON = sql.NullString{String: string(b), Valid: true}
		mask = DefaultedMask(r.Defaulted)
	}

	res, err := db.Exec(
		`INSERT INTO pose_results (run_id, image_path, detected, vector_json, defaulted_mask, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, imagePath, r.Ok(), vecJSON, mask, unixSeconds(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert result for %s: %w", imagePath, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read result id: %w", err)
	}
	tracef("run %s: stored result %d for %s", runID, id, imagePath)
	return id, nil
}

// GetRun loads a run by id. Returns sql.ErrNoRows when it does not exist.
func (db *DB) GetRun(runID string) (Run, error) {
	var run Run
	var started float64
	err := db.QueryRow(
		`SELECT run_id, started_at, config_json FROM pose_runs WHERE run_id = ?`, runID,
	).Scan(&run.ID, &started, &run.ConfigJSON)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = fromUnixSeconds(started)
	return run, nil
}

// Results returns the results of a run in insertion order.
func (db *DB) Results(runID string) ([]Result, error) {
	rows, err := db.Query(
		`SELECT result_id, run_id, image_path, detected, vector_json, defaulted_mask, created_at
		 FROM pose_results WHERE run_id = ? ORDER BY result_id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r       Result
			vecJSON sql.NullString
			mask    int64
			created float64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.ImagePath, &r.Detected, &vecJSON, &mask, &created); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if vecJSON.Valid {
			var vals []float64
			if err := json.Unmarshal([]byte(vecJSON.String), &vals); err != nil {
				return nil, fmt.Errorf("result %d: bad vector_json: %w", r.ID, err)
			}
			if len(vals) != humanoid.NumJoints {
				return nil, fmt.Errorf("result %d: vector has %d values, want %d", r.ID, len(vals), humanoid.NumJoints)
			}
			copy(r.Vector[:], vals)
		}
		r.Defaulted = UnpackDefaultedMask(mask)
		r.CreatedAt = fromUnixSeconds(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
