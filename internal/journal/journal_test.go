package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
	"domotica-bridge/internal/events"
)

func sampleEvent() events.Event {
	return events.NewTableUpdate(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), 3, []domotica.Mesa{
		{Identificador: "MESA-01", Zona: "Terraza", Ocupado: true},
	})
}

func TestRecordEventInserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	evt := sampleEvent()
	mock.ExpectExec("INSERT INTO table_events").
		WithArgs(evt.ID, evt.TS, "table_update", int64(3), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	j := NewWithDB(mock, zap.NewNop())
	require.NoError(t, j.RecordEvent(context.Background(), evt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEventDuplicateIgnored(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	evt := sampleEvent()
	mock.ExpectExec("INSERT INTO table_events").
		WithArgs(evt.ID, evt.TS, "table_update", int64(3), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	j := NewWithDB(mock, zap.NewNop())
	require.NoError(t, j.RecordEvent(context.Background(), evt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEventSurfacesDBError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("deadlock detected")
	mock.ExpectExec("INSERT INTO table_events").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(boom)

	j := NewWithDB(mock, zap.NewNop())
	err = j.RecordEvent(context.Background(), sampleEvent())
	require.ErrorIs(t, err, boom)
}
