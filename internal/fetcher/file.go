package fetcher

import (
	"context"
	"os"

	"github.com/savegress/investdash/pkg/models"
)

// FileSource serves records from JSON dumps of the backend responses. An empty
// path yields an empty stream.
type FileSource struct {
	TransactionsPath string
	WithdrawalsPath  string
}

// FetchTransactions implements Fetcher
func (s *FileSource) FetchTransactions(ctx context.Context, _ models.UserProfile) ([]models.RawTransaction, error) {
	body, err := readDump(ctx, StreamTransactions, s.TransactionsPath)
	if err != nil {
		return nil, err
	}
	txs, err := decodeList[models.RawTransaction](body, StreamTransactions)
	if err != nil {
		return nil, &FetchError{Stream: StreamTransactions, Message: "decode " + s.TransactionsPath, Cause: err}
	}
	return txs, nil
}

// FetchWithdrawals implements Fetcher
func (s *FileSource) FetchWithdrawals(ctx context.Context, _ models.UserProfile) ([]models.RawWithdrawal, error) {
	body, err := readDump(ctx, StreamWithdrawals, s.WithdrawalsPath)
	if err != nil {
		return nil, err
	}
	ws, err := decodeList[models.RawWithdrawal](body, StreamWithdrawals)
	if err != nil {
		return nil, &FetchError{Stream: StreamWithdrawals, Message: "decode " + s.WithdrawalsPath, Cause: err}
	}
	return ws, nil
}

func readDump(ctx context.Context, stream, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Stream: stream, Message: "canceled", Cause: err}
	}
	if path == "" {
		return nil, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{Stream: stream, Message: "read " + path, Cause: err}
	}
	return body, nil
}
