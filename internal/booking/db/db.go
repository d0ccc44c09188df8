package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// DB is the ticket store. Every mutation that spans multiple rows runs in a
// single transaction; check-in uses a conditional update so two concurrent
// gates can never both win.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// CountCommitted returns how many tickets currently occupy capacity in a
// zone: unpaid or paid, as long as they are not cancelled.
func (d *DB) CountCommitted(ctx context.Context, zoneID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("zone_id = ?", zoneID).
		Where("registration_status != ?", models.RegistrationCancelled).
		Count(ctx)
}

// TicketCodeExists reports whether a code is already assigned.
func (d *DB) TicketCodeExists(ctx context.Context, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_code = ?", code).
		Exists(ctx)
}

// InsertTickets writes every ticket of one purchase, all or nothing.
func (d *DB) InsertTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&tickets).Exec(ctx)
		return err
	})
}

func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByPaymentGroup(ctx context.Context, groupRef string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("payment_group_ref = ?", groupRef).
		Order("ticket_code").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ConfirmGroup settles every unpaid pending ticket of the group in one
// statement. Already-paid rows are untouched, which keeps paid_at stable on
// retries. Cancelled rows are never revived: the update skips them, and the
// transaction rolls back when any ticket of the group was cancelled — a
// confirm that races a cancel or the hold sweeper loses cleanly instead of
// resurrecting released capacity.
func (d *DB) ConfirmGroup(ctx context.Context, groupRef string, now time.Time) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("payment_status = ?", models.PaymentPaid).
			Set("registration_status = ?", models.RegistrationConfirmed).
			Set("paid_at = ?", now).
			Set("updated_at = ?", now).
			Where("payment_group_ref = ?", groupRef).
			Where("payment_status = ?", models.PaymentUnpaid).
			Where("registration_status = ?", models.RegistrationPending).
			Exec(ctx)
		if err != nil {
			return err
		}

		// The update locked the surviving rows, so this count is stable until
		// commit; a cancel landing later re-evaluates its own conditions
		// against the now-paid rows and matches nothing.
		cancelled, err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("payment_group_ref = ?", groupRef).
			Where("registration_status = ?", models.RegistrationCancelled).
			Count(ctx)
		if err != nil {
			return err
		}
		if cancelled > 0 {
			return fmt.Errorf("payment group %s has cancelled tickets: %w", groupRef, models.ErrAlreadyCancelled)
		}
		return nil
	})
}

// MarkCheckedIn is the double-admission guard: the update only matches while
// checked_in is still false, so exactly one concurrent caller gets a row.
func (d *DB) MarkCheckedIn(ctx context.Context, code string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("checked_in = ?", true).
		Set("checked_in_at = ?", now).
		Set("updated_at = ?", now).
		Where("ticket_code = ?", code).
		Where("checked_in = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CancelGroup cancels every still-unpaid ticket of a group.
func (d *DB) CancelGroup(ctx context.Context, groupRef string, reason models.CancelledReason, now time.Time) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("registration_status = ?", models.RegistrationCancelled).
			Set("cancelled_reason = ?", reason).
			Set("updated_at = ?", now).
			Where("payment_group_ref = ?", groupRef).
			Where("payment_status = ?", models.PaymentUnpaid).
			Where("registration_status = ?", models.RegistrationPending).
			Exec(ctx)
		return err
	})
}

// CancelExpiredHolds cancels unpaid pending tickets whose hold window has
// passed, releasing their capacity. Returns how many rows were swept.
func (d *DB) CancelExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("registration_status = ?", models.RegistrationCancelled).
		Set("cancelled_reason = ?", models.CancelledPaymentTimeout).
		Set("updated_at = ?", now).
		Where("payment_status = ?", models.PaymentUnpaid).
		Where("registration_status = ?", models.RegistrationPending).
		Where("hold_expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountCheckedInBySession returns how many tickets were admitted for a session.
func (d *DB) CountCheckedInBySession(ctx context.Context, sessionID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("session_id = ?", sessionID).
		Where("checked_in = ?", true).
		Count(ctx)
}
