package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/polica/internal/model"
)

// LendingQuery narrows ListLendings. Status is "", "open" or "overdue".
type LendingQuery struct {
	Status   string
	ReaderID int64
}

func (q LendingQuery) path() string {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.ReaderID > 0 {
		v.Set("reader_id", strconv.FormatInt(q.ReaderID, 10))
	}
	if len(v) == 0 {
		return "/api/lendings"
	}
	return "/api/lendings?" + v.Encode()
}

// NewLending is the input of CreateLending. Zero EmployeeID and a nil
// DateLending leave the choice to the server.
type NewLending struct {
	ReaderID          int64       `json:"reader_id"`
	EmployeeID        int64       `json:"employee_id,omitempty"`
	CopybookIDs       []int64     `json:"copybook_ids"`
	DateLending       *model.Date `json:"date_lending,omitempty"`
	DateReturnPlanned model.Date  `json:"date_return_planned"`
}

// ListLendings returns lendings, newest first.
func (c *Client) ListLendings(ctx context.Context, q LendingQuery) ([]model.Lending, error) {
	var lendings []model.Lending
	return lendings, c.get(ctx, collLendings, q.path(), &lendings)
}

// GetLending returns one lending.
func (c *Client) GetLending(ctx context.Context, id int64) (*model.Lending, error) {
	var l model.Lending
	if err := c.get(ctx, collLendings, fmt.Sprintf("/api/lendings/%d", id), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLending checks copies out to a reader.
func (c *Client) CreateLending(ctx context.Context, in NewLending) (*model.Lending, error) {
	var l model.Lending
	if err := c.send(ctx, http.MethodPost, "/api/lendings", in, &l, collLendings, collCopybooks); err != nil {
		return nil, err
	}
	return &l, nil
}

// CloseLending records the return of every copy in a lending. A nil date
// means today on the server's clock.
func (c *Client) CloseLending(ctx context.Context, id int64, returned *model.Date) (*model.Lending, error) {
	var l model.Lending
	err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/lendings/%d/close", id),
		map[string]*model.Date{"date_return": returned}, &l, collLendings, collCopybooks)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
