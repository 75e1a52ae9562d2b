package candle

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	v1 "github.com/Mohd-Saddam/fx-ohlc-microservice/internal/domain/candle/v1"
	"github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/interval"
	mock "github.com/Mohd-Saddam/fx-ohlc-microservice/pkg/timescale/mock"
)

func minuteCandle(mm int) *v1.Candle {
	return &v1.Candle{
		Bucket:      time.Date(2025, 12, 4, 10, mm, 0, 0, time.UTC),
		Symbol:      "EURUSD",
		Granularity: interval.GranularityMinute,
		Open:        1.0850,
		High:        1.0875,
		Low:         1.0845,
		Close:       1.0860,
		TickCount:   4,
	}
}

func TestRepository_Upsert(t *testing.T) {
	testCases := []struct {
		name     string
		mockFn   func(c *v1.Candle, client *mock.MockClient)
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "success",
			mockFn: func(c *v1.Candle, client *mock.MockClient) {
				client.EXPECT().
					Exec(gomock.Any(), upsertQuery,
						c.Bucket, c.Symbol, string(c.Granularity),
						c.Open, c.High, c.Low, c.Close, c.TickCount).
					Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "error",
			mockFn: func(c *v1.Candle, client *mock.MockClient) {
				client.EXPECT().
					Exec(gomock.Any(), upsertQuery,
						c.Bucket, c.Symbol, string(c.Granularity),
						c.Open, c.High, c.Low, c.Close, c.TickCount).
					Return(pgconn.CommandTag{}, stderrors.New("connection refused"))
			},
			assertFn: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			client := mock.NewMockClient(ctrl)
			candle := minuteCandle(0)
			tc.mockFn(candle, client)

			repo := NewRepository(client)
			tc.assertFn(t, repo.Upsert(context.Background(), candle))
		})
	}
}

func TestRepository_UpsertBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock.NewMockClient(ctrl)
	client.EXPECT().
		Exec(gomock.Any(), upsertQuery, gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).
		Times(3)

	repo := NewRepository(client)
	err := repo.UpsertBatch(context.Background(), []*v1.Candle{
		minuteCandle(0), minuteCandle(1), minuteCandle(2),
	})
	assert.NoError(t, err)
}

func TestRepository_UpsertBatchAbortsOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().
			Exec(gomock.Any(), upsertQuery, gomock.Any(), gomock.Any(), gomock.Any(),
				gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.NewCommandTag("INSERT 0 1"), nil),
		client.EXPECT().
			Exec(gomock.Any(), upsertQuery, gomock.Any(), gomock.Any(), gomock.Any(),
				gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag{}, stderrors.New("connection refused")),
	)

	repo := NewRepository(client)
	err := repo.UpsertBatch(context.Background(), []*v1.Candle{
		minuteCandle(0), minuteCandle(1), minuteCandle(2),
	})
	assert.Error(t, err)
}
