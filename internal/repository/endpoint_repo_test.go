package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"rinnai_gateway/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

type argFunc func(v driver.Value) bool

func (f argFunc) Match(v driver.Value) bool { return f(v) }

func TestEndpointSQLite_Save(t *testing.T) {
	t.Parallel()

	discovered := time.Date(2026, 2, 3, 9, 0, 0, 0, time.FixedZone("AEDT", 11*3600))

	tests := []struct {
		name     string
		in       models.Endpoint
		expect   func(m sqlmock.Sqlmock)
		wantErr  error
		anyError bool
	}{
		{
			name: "upserts with UTC time",
			in:   models.Endpoint{Host: " 192.168.1.40 ", Port: 27847, DiscoveredAt: discovered},
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("INSERT INTO appliance_endpoint")).
					WithArgs(endpointRowID, "192.168.1.40", 27847, argFunc(func(v driver.Value) bool {
						tm, ok := v.(time.Time)
						return ok && tm.Equal(discovered) && tm.Location() == time.UTC
					})).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name: "zero time set to now",
			in:   models.Endpoint{Host: "10.0.0.2", Port: 9000},
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("INSERT INTO appliance_endpoint")).
					WithArgs(endpointRowID, "10.0.0.2", 9000, argFunc(func(v driver.Value) bool {
						tm, ok := v.(time.Time)
						return ok && time.Since(tm) < 5*time.Second
					})).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name:    "missing host",
			in:      models.Endpoint{Port: 9000},
			expect:  func(sqlmock.Sqlmock) {},
			wantErr: errInvalidEndpoint,
		},
		{
			name:    "port out of range",
			in:      models.Endpoint{Host: "10.0.0.2", Port: 70000},
			expect:  func(sqlmock.Sqlmock) {},
			wantErr: errInvalidEndpoint,
		},
		{
			name: "exec error",
			in:   models.Endpoint{Host: "10.0.0.2", Port: 9000},
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("INSERT INTO appliance_endpoint").WillReturnError(errors.New("locked"))
			},
			anyError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMockDB(t)
			tt.expect(mock)

			err := NewEndpointSQLite(db).Save(testCtx(t), tt.in)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.anyError:
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
			default:
				if err != nil {
					t.Fatalf("Save: %v", err)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("mock expectations: %v", err)
			}
		})
	}
}

func TestEndpointSQLite_Load(t *testing.T) {
	t.Parallel()

	t.Run("cached", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		at := time.Date(2026, 2, 3, 9, 0, 0, 0, time.FixedZone("AEDT", 11*3600))
		mock.ExpectQuery(regexp.QuoteMeta(selectEndpointSQL)).
			WithArgs(endpointRowID).
			WillReturnRows(sqlmock.NewRows([]string{"host", "port", "discovered_at"}).AddRow("192.168.1.40", 27847, at))

		e, ok, err := NewEndpointSQLite(db).Load(testCtx(t))
		if err != nil || !ok {
			t.Fatalf("Load = (%v, %v)", ok, err)
		}
		if e.Host != "192.168.1.40" || e.Port != 27847 {
			t.Fatalf("endpoint = %+v", e)
		}
		if e.DiscoveredAt.Location() != time.UTC {
			t.Fatalf("DiscoveredAt not UTC: %v", e.DiscoveredAt)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectEndpointSQL)).
			WithArgs(endpointRowID).
			WillReturnError(sql.ErrNoRows)

		_, ok, err := NewEndpointSQLite(db).Load(testCtx(t))
		if err != nil || ok {
			t.Fatalf("Load = (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectEndpointSQL)).
			WithArgs(endpointRowID).
			WillReturnError(errors.New("io"))

		if _, _, err := NewEndpointSQLite(db).Load(testCtx(t)); err == nil {
			t.Fatalf("expected error, got nil")
		}
	})
}

func TestEndpointSQLite_Clear(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteEndpointSQL)).
		WithArgs(endpointRowID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewEndpointSQLite(db).Clear(testCtx(t)); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
