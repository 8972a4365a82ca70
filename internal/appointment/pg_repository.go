package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/tenant-booking-engine/internal/availability"
	"github.com/hackgods/tenant-booking-engine/internal/db"
	"github.com/hackgods/tenant-booking-engine/internal/outbox"
)

const (
	appointmentColumns = `id, company_id, professional_id, service_id, client_id, start_at, end_at,
		status, payment_status, payment_reference, cancel_reason, hold_expires_at, created_at, updated_at`
	blockColumns = `id, company_id, target, professional_id, start_at, end_at, reason, repeats_weekly, repeat_until, active`
	draftColumns = `id, company_id, block, window_start, window_end, state, conflict_ids, created_at, updated_at`
)

type PgRepository struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
}

var _ Repository = (*PgRepository)(nil)

func NewPgRepository(pool *pgxpool.Pool, events *outbox.Repository) *PgRepository {
	return &PgRepository{pool: pool, outbox: events}
}

// Helpers

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Timezone, &c.DefaultTemplateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.DefaultTemplateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanService(row pgx.Row) (*ServiceOffering, error) {
	var s ServiceOffering
	var confirmation string
	err := row.Scan(
		&s.ID,
		&s.CompanyID,
		&s.Name,
		&s.FeeCents,
		&s.Policy.DurationMinutes,
		&s.Policy.SimultaneousPerUser,
		&s.Policy.SimultaneousPerSlot,
		&s.Policy.AutomaticPerSlot,
		&s.Policy.IntervalBetweenSlotsMinutes,
		&s.Policy.BlockAfter24Hours,
		&confirmation,
		&s.Policy.LinkedTemplateID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	s.Policy.Confirmation = availability.ConfirmationType(confirmation)
	return &s, nil
}

func scanTemplate(row pgx.Row) (*availability.Template, error) {
	var t availability.Template
	var days []byte
	err := row.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Description, &days)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(days, &t.Days); err != nil {
		return nil, fmt.Errorf("decode template days: %w", err)
	}
	return &t, nil
}

func scanBlock(row pgx.Row) (*availability.Block, error) {
	var b availability.Block
	var target string
	err := row.Scan(
		&b.ID,
		&b.CompanyID,
		&target,
		&b.ProfessionalID,
		&b.Start,
		&b.End,
		&b.Reason,
		&b.RepeatsWeekly,
		&b.RepeatUntil,
		&b.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	b.Target = availability.BlockTarget(target)
	return &b, nil
}

func scanDraft(row pgx.Row) (*BlockDraft, error) {
	var d BlockDraft
	var block, conflicts []byte
	var state string
	err := row.Scan(
		&d.ID,
		&d.CompanyID,
		&block,
		&d.Window.Start,
		&d.Window.End,
		&state,
		&conflicts,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockDraftNotFound
		}
		return nil, err
	}
	d.State = DraftState(state)
	if err := json.Unmarshal(block, &d.Block); err != nil {
		return nil, fmt.Errorf("decode draft block: %w", err)
	}
	if err := json.Unmarshal(conflicts, &d.ConflictIDs); err != nil {
		return nil, fmt.Errorf("decode draft conflicts: %w", err)
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, payment string
	err := row.Scan(
		&a.ID,
		&a.CompanyID,
		&a.ProfessionalID,
		&a.ServiceID,
		&a.ClientID,
		&a.Start,
		&a.End,
		&status,
		&payment,
		&a.PaymentReference,
		&a.CancelReason,
		&a.HoldExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Status = AppointmentStatus(status)
	a.PaymentStatus = PaymentStatus(payment)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// advisoryLock takes a transaction-scoped lock on key.
func advisoryLock(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}

func bumpCatalogVersion(ctx context.Context, tx pgx.Tx, companyID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE companies
		SET catalog_version = catalog_version + 1,
		    updated_at = now()
		WHERE id = $1
	`, companyID)
	if err != nil {
		return fmt.Errorf("bump catalog version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// Catalog

func (r *PgRepository) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, default_template_id
		FROM companies
		WHERE id = $1
	`, id)
	return scanCompany(row)
}

func (r *PgRepository) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_id, name, default_template_id
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) GetService(ctx context.Context, id uuid.UUID) (*ServiceOffering, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_id, name, fee_cents, duration_minutes, simultaneous_per_user,
		       simultaneous_per_slot, automatic_per_slot, interval_between_slots_minutes,
		       block_after_24_hours, confirmation, linked_template_id
		FROM services
		WHERE id = $1
	`, id)
	svc, err := scanService(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT professional_id
		FROM service_professionals
		WHERE service_id = $1
		ORDER BY professional_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var proID uuid.UUID
		if err := rows.Scan(&proID); err != nil {
			return nil, err
		}
		svc.ProfessionalIDs = append(svc.ProfessionalIDs, proID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (r *PgRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*availability.Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, company_id, name, description, days
		FROM availability_templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (r *PgRepository) SaveTemplate(ctx context.Context, tpl availability.Template) (*availability.Template, error) {
	days, err := json.Marshal(tpl.Days)
	if err != nil {
		return nil, fmt.Errorf("encode template days: %w", err)
	}

	var saved *availability.Template
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := bumpCatalogVersion(ctx, tx, tpl.CompanyID); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO availability_templates (id, company_id, name, description, days)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    description = EXCLUDED.description,
			    days = EXCLUDED.days,
			    updated_at = now()
			RETURNING id, company_id, name, description, days
		`, tpl.ID, tpl.CompanyID, tpl.Name, tpl.Description, days)
		saved, err = scanTemplate(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *PgRepository) CatalogVersion(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `SELECT catalog_version FROM companies WHERE id = $1`, companyID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCompanyNotFound
		}
		return 0, err
	}
	return version, nil
}

// Blocks

func (r *PgRepository) ListActiveBlocks(ctx context.Context, companyID uuid.UUID) ([]availability.Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocks
		WHERE company_id = $1 AND active
		ORDER BY start_at, id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetBlock(ctx context.Context, id uuid.UUID) (*availability.Block, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, id)
	return scanBlock(row)
}

// ApplyBlock runs the whole block change in one transaction. Bumping the
// catalog version first waits for in-flight admissions of the company, which
// hold the row FOR SHARE, so every committed appointment is seen below.
func (r *PgRepository) ApplyBlock(ctx context.Context, req ApplyBlockRequest) ([]Appointment, error) {
	var conflicts, cancelled []Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if req.DraftID != nil {
			var state string
			err := tx.QueryRow(ctx, `SELECT state FROM block_drafts WHERE id = $1 FOR UPDATE`, *req.DraftID).Scan(&state)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrBlockDraftNotFound
				}
				return err
			}
			if DraftState(state) != DraftStateConflictChecked {
				return ErrInvalidDraftState
			}
		}

		if err := bumpCatalogVersion(ctx, tx, req.Block.CompanyID); err != nil {
			return err
		}

		var professionalID *uuid.UUID
		if req.Block.Target == availability.TargetProfessional {
			professionalID = req.Block.ProfessionalID
		}
		rows, err := tx.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE company_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND start_at < $3
			  AND end_at > $2
			  AND ($4::uuid IS NULL OR professional_id = $4)
			ORDER BY start_at, id
			FOR UPDATE
		`, req.Block.CompanyID, req.Window.Start, req.Window.End, professionalID)
		if err != nil {
			return err
		}
		found, err := collectAppointments(rows)
		if err != nil {
			return err
		}
		if len(found) > 0 && !req.CancelConflicts {
			conflicts = found
			return ErrConflictsPending
		}

		reason := cancelReasonBlock(req.Block)
		for _, a := range found {
			row := tx.QueryRow(ctx, `
				UPDATE appointments
				SET status = $2,
				    cancel_reason = $3,
				    hold_expires_at = NULL,
				    updated_at = now()
				WHERE id = $1
				RETURNING `+appointmentColumns, a.ID, StatusCancelledBySystem, reason)
			updated, err := scanAppointment(row)
			if err != nil {
				return fmt.Errorf("cancel appointment %s: %w", a.ID, err)
			}
			evt, err := appointmentEvent(outbox.TopicAppointmentCancelled, *updated, a.Status)
			if err != nil {
				return err
			}
			if err := r.outbox.Insert(ctx, tx, evt); err != nil {
				return fmt.Errorf("insert outbox event: %w", err)
			}
			cancelled = append(cancelled, *updated)
		}

		b := req.Block
		_, err = tx.Exec(ctx, `
			INSERT INTO blocks (id, company_id, target, professional_id, start_at, end_at, reason, repeats_weekly, repeat_until, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)
			ON CONFLICT (id) DO UPDATE
			SET target = EXCLUDED.target,
			    professional_id = EXCLUDED.professional_id,
			    start_at = EXCLUDED.start_at,
			    end_at = EXCLUDED.end_at,
			    reason = EXCLUDED.reason,
			    repeats_weekly = EXCLUDED.repeats_weekly,
			    repeat_until = EXCLUDED.repeat_until,
			    active = true,
			    updated_at = now()
		`, b.ID, b.CompanyID, string(b.Target), b.ProfessionalID, b.Start, b.End, b.Reason, b.RepeatsWeekly, b.RepeatUntil)
		if err != nil {
			return fmt.Errorf("upsert block: %w", err)
		}

		if req.DraftID != nil {
			_, err := tx.Exec(ctx, `
				UPDATE block_drafts
				SET state = $2,
				    updated_at = now()
				WHERE id = $1
			`, *req.DraftID, string(DraftStateApplied))
			if err != nil {
				return fmt.Errorf("mark draft applied: %w", err)
			}
		}
		return nil
	})

	if errors.Is(err, ErrConflictsPending) {
		return conflicts, err
	}
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (r *PgRepository) DeactivateBlock(ctx context.Context, id uuid.UUID) (*availability.Block, error) {
	var b *availability.Block
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE blocks
			SET active = false,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+blockColumns, id)
		var err error
		b, err = scanBlock(row)
		if err != nil {
			return err
		}
		return bumpCatalogVersion(ctx, tx, b.CompanyID)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PgRepository) SaveBlockDraft(ctx context.Context, d BlockDraft) error {
	block, err := json.Marshal(d.Block)
	if err != nil {
		return fmt.Errorf("encode draft block: %w", err)
	}
	ids := d.ConflictIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	conflicts, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode draft conflicts: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO block_drafts (id, company_id, block, window_start, window_end, state, conflict_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($8, now()))
		ON CONFLICT (id) DO UPDATE
		SET block = EXCLUDED.block,
		    window_start = EXCLUDED.window_start,
		    window_end = EXCLUDED.window_end,
		    state = EXCLUDED.state,
		    conflict_ids = EXCLUDED.conflict_ids,
		    updated_at = now()
	`, d.ID, d.CompanyID, block, d.Window.Start, d.Window.End, string(d.State), conflicts, nullableTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert block draft: %w", err)
	}
	return nil
}

func (r *PgRepository) GetBlockDraft(ctx context.Context, id uuid.UUID) (*BlockDraft, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM block_drafts WHERE id = $1`, id)
	return scanDraft(row)
}

func (r *PgRepository) AbortBlockDraft(ctx context.Context, id uuid.UUID) (*BlockDraft, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE block_drafts
		SET state = $2,
		    updated_at = now()
		WHERE id = $1
		  AND state IN ('draft', 'conflict_checked')
		RETURNING `+draftColumns, id, string(DraftStateAborted))
	d, err := scanDraft(row)
	if errors.Is(err, ErrBlockDraftNotFound) {
		if _, getErr := r.GetBlockDraft(ctx, id); getErr == nil {
			return nil, ErrInvalidDraftState
		}
	}
	return d, err
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveAppointments(ctx context.Context, serviceID, professionalID uuid.UUID, window availability.Interval) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE service_id = $1
		  AND professional_id = $2
		  AND status IN ('pending', 'confirmed')
		  AND start_at < $4
		  AND end_at > $3
		ORDER BY start_at, id
	`, serviceID, professionalID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CountActiveForClient(ctx context.Context, clientID, serviceID uuid.UUID, now time.Time) (int, error) {
	return countActiveForClient(ctx, r.pool, clientID, serviceID, now)
}

func (r *PgRepository) HasCreatedSince(ctx context.Context, clientID, serviceID uuid.UUID, since, now time.Time) (bool, error) {
	return hasCreatedSince(ctx, r.pool, clientID, serviceID, since, now)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countActiveForClient(ctx context.Context, q querier, clientID, serviceID uuid.UUID, now time.Time) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE client_id = $1
		  AND service_id = $2
		  AND status IN ('pending', 'confirmed')
		  AND end_at > $3
	`, clientID, serviceID, now).Scan(&n)
	return n, err
}

func hasCreatedSince(ctx context.Context, q querier, clientID, serviceID uuid.UUID, since, now time.Time) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE client_id = $1
			  AND service_id = $2
			  AND created_at > $3
			  AND created_at <= $4
		)
	`, clientID, serviceID, since, now).Scan(&exists)
	return exists, err
}

// AdmitAppointment inserts appt after repeating every admission check under
// transaction-scoped advisory locks on the slot and on the client.
func (r *PgRepository) AdmitAppointment(ctx context.Context, appt Appointment, guard AdmissionGuard) (*Appointment, error) {
	var created *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var version int64
		err := tx.QueryRow(ctx, `SELECT catalog_version FROM companies WHERE id = $1 FOR SHARE`, appt.CompanyID).Scan(&version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCompanyNotFound
			}
			return err
		}
		if version != guard.CatalogVersion {
			return ErrSlotNoLongerAvailable
		}

		if err := advisoryLock(ctx, tx, fmt.Sprintf("slot:%s:%s", appt.ServiceID, appt.ProfessionalID)); err != nil {
			return err
		}
		var used int
		err = tx.QueryRow(ctx, `
			SELECT count(*)
			FROM appointments
			WHERE service_id = $1
			  AND professional_id = $2
			  AND status IN ('pending', 'confirmed')
			  AND start_at < $4
			  AND end_at > $3
		`, appt.ServiceID, appt.ProfessionalID, appt.Start, appt.End).Scan(&used)
		if err != nil {
			return fmt.Errorf("count slot occupancy: %w", err)
		}
		if used >= guard.SlotCapacity {
			return ErrSlotNoLongerAvailable
		}

		if err := advisoryLock(ctx, tx, fmt.Sprintf("client:%s:%s", appt.ClientID, appt.ServiceID)); err != nil {
			return err
		}
		active, err := countActiveForClient(ctx, tx, appt.ClientID, appt.ServiceID, guard.Now)
		if err != nil {
			return fmt.Errorf("count client appointments: %w", err)
		}
		if active >= guard.PerUserLimit {
			return ErrCapacityExceeded
		}
		if guard.CooldownSince != nil {
			recent, err := hasCreatedSince(ctx, tx, appt.ClientID, appt.ServiceID, *guard.CooldownSince, guard.Now)
			if err != nil {
				return fmt.Errorf("check cool-down: %w", err)
			}
			if recent {
				return ErrCooldownActive
			}
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, company_id, professional_id, service_id, client_id, start_at, end_at,
			                          status, payment_status, payment_reference, hold_expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
			RETURNING `+appointmentColumns,
			appt.ID, appt.CompanyID, appt.ProfessionalID, appt.ServiceID, appt.ClientID, appt.Start, appt.End,
			string(appt.Status), string(appt.PaymentStatus), appt.PaymentReference, appt.HoldExpiresAt, guard.Now)
		created, err = scanAppointment(row)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		evt, err := appointmentEvent(outbox.TopicAppointmentCreated, *created, "")
		if err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, evt); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, reason string) (*Appointment, error) {
	if !to.Cancelled() {
		reason = ""
	}

	var updated *Appointment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2,
			    cancel_reason = CASE WHEN $4 <> '' THEN $4 ELSE cancel_reason END,
			    hold_expires_at = CASE WHEN $2 = 'pending' THEN hold_expires_at ELSE NULL END,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING `+appointmentColumns, id, string(to), string(from), reason)
		var err error
		updated, err = scanAppointment(row)
		if err != nil {
			return err
		}

		evt, err := appointmentEvent(topicFor(to), *updated, from)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND hold_expires_at IS NOT NULL
		  AND hold_expires_at < $1
		ORDER BY hold_expires_at
	`, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
