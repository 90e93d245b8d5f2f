package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"donortrack/internal/activity"
	"donortrack/internal/domain"
)

// DonorInput is a donor record without its generated id and timestamp.
type DonorInput struct {
	FirstName        string  `json:"first_name"`
	NickName         string  `json:"nick_name"`
	LastName         string  `json:"last_name"`
	PMM              string  `json:"pmm" validate:"notblank"`
	OrganizationName string  `json:"organization_name"`
	City             string  `json:"city"`
	TotalDonations   float64 `json:"total_donations"`
}

const donorColumns = `donor_id,COALESCE(first_name,''),COALESCE(nick_name,''),COALESCE(last_name,''),pmm,COALESCE(organization_name,''),COALESCE(city,''),total_donations,created_at`

func scanDonor(row rowScanner) (domain.Donor, error) {
	var d domain.Donor
	err := row.Scan(&d.ID, &d.FirstName, &d.NickName, &d.LastName, &d.PMM, &d.OrganizationName, &d.City, &d.TotalDonations, &d.CreatedAt)
	return d, err
}

func (s *Store) ListDonors(ctx context.Context) (_ []domain.Donor, err error) {
	defer s.track("list donors", time.Now(), &err)
	rows, err := s.DB.QueryContext(ctx, `SELECT `+donorColumns+` FROM donors ORDER BY donor_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Donor{}
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *Store) GetDonor(ctx context.Context, id int64) (_ domain.Donor, err error) {
	defer s.track("get donor", time.Now(), &err)
	d, err := scanDonor(s.DB.QueryRowContext(ctx, `SELECT `+donorColumns+` FROM donors WHERE donor_id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("donor %d: %w", id, ErrNotFound)
	}
	return d, err
}

// FindDonorByName returns the oldest donor with exactly this first and last name.
func (s *Store) FindDonorByName(ctx context.Context, firstName, lastName string) (_ domain.Donor, err error) {
	defer s.track("find donor", time.Now(), &err)
	return s.findDonorByName(ctx, firstName, lastName)
}

func (s *Store) findDonorByName(ctx context.Context, firstName, lastName string) (domain.Donor, error) {
	d, err := scanDonor(s.DB.QueryRowContext(ctx, `SELECT `+donorColumns+` FROM donors
WHERE COALESCE(first_name,'')=? AND COALESCE(last_name,'')=? ORDER BY donor_id ASC LIMIT 1`, firstName, lastName))
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("donor %q %q: %w", firstName, lastName, ErrNotFound)
	}
	return d, err
}

// CreateDonor inserts one donor. It does not de-duplicate; see FindOrCreateDonor.
func (s *Store) CreateDonor(ctx context.Context, in DonorInput) (id int64, err error) {
	defer s.track("create donor", time.Now(), &err)
	return s.createDonor(ctx, in)
}

func (s *Store) createDonor(ctx context.Context, in DonorInput) (int64, error) {
	if err := validateInput(in, ""); err != nil {
		return 0, err
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.insertDonor(ctx, tx, in)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateDonorsBatch inserts every record in one transaction and returns their ids
// in input order. Any failure leaves the table untouched.
func (s *Store) CreateDonorsBatch(ctx context.Context, donors []DonorInput) (ids []int64, err error) {
	defer s.track("create donors batch", time.Now(), &err)
	for i, d := range donors {
		if err := validateInput(d, fmt.Sprintf("donors[%d]", i)); err != nil {
			return nil, err
		}
	}
	ids = make([]int64, 0, len(donors))
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, d := range donors {
			id, err := s.insertDonor(ctx, tx, d)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindOrCreateDonor resolves a donor by (first name, last name), inserting it when
// absent. Lookup and insert run under one lock, so concurrent callers in this
// process converge on a single row.
func (s *Store) FindOrCreateDonor(ctx context.Context, in DonorInput) (id int64, created bool, err error) {
	defer s.track("find or create donor", time.Now(), &err)
	s.donorMu.Lock()
	defer s.donorMu.Unlock()

	existing, err := s.findDonorByName(ctx, in.FirstName, in.LastName)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}
	id, err = s.createDonor(ctx, in)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) insertDonor(ctx context.Context, tx *sql.Tx, in DonorInput) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO donors(first_name,nick_name,last_name,pmm,organization_name,city,total_donations,created_at)
VALUES (?,?,?,?,?,?,?,?)`,
		in.FirstName, in.NickName, in.LastName, in.PMM, in.OrganizationName, in.City, in.TotalDonations, s.now())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	err = s.Activity.Append(ctx, tx, activity.DonorCreated, "donor", id, activity.ActorFrom(ctx), activity.Payload{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"pmm":        in.PMM,
	})
	return id, err
}
