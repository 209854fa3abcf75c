package card_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/bankcards/infra/cache"
	"github.com/amirasaad/bankcards/infra/repository/memory"
	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/amirasaad/bankcards/pkg/repository"
	cardsvc "github.com/amirasaad/bankcards/pkg/service/card"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice   = "alice@x.com"
	bob     = "bob@x.com"
	cardOne = "4000000000000001"
	cardTwo = "4000000000000002"
)

type fixture struct {
	svc *cardsvc.Service
	uow repository.UnitOfWork
	ctx context.Context
	seq atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cache.NewMemoryIdempotencyStore(time.Hour)
	t.Cleanup(store.Close)
	uow := memory.NewUoW(memory.NewStore(2 * time.Second))
	f := &fixture{
		svc: cardsvc.NewService(uow, idempotency.NewGuard(store, 0, nil), cardsvc.Config{}, nil),
		uow: uow,
		ctx: context.Background(),
	}
	f.addCustomer(t, alice, "Alice")
	f.addCustomer(t, bob, "Bob")
	return f
}

func (f *fixture) key() string {
	return fmt.Sprintf("key-%d", f.seq.Add(1))
}

func (f *fixture) addCustomer(t *testing.T, email, name string) {
	t.Helper()
	c, err := customer.New(email, "hash", name)
	require.NoError(t, err)
	repo, err := f.uow.CustomerRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Create(f.ctx, c))
}

func (f *fixture) createCard(t *testing.T, number, owner string) cardsvc.CardView {
	t.Helper()
	view, err := f.svc.CreateCard(f.ctx, f.key(), commands.CreateCard{
		Number:     number,
		OwnerEmail: owner,
		ExpiryDate: time.Now().UTC().AddDate(2, 0, 0),
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) replenish(t *testing.T, number, owner, amount string) {
	t.Helper()
	_, err := f.svc.Replenish(f.ctx, f.key(), commands.Replenish{
		Number:   number,
		Amount:   decimal.RequireFromString(amount),
		Currency: "RUB",
	}, owner)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, number, owner string) string {
	t.Helper()
	view, err := f.svc.GetCard(f.ctx, number, owner)
	require.NoError(t, err)
	return view.Balance
}

func (f *fixture) txCount(t *testing.T, number string) int64 {
	t.Helper()
	page, err := f.svc.CardTransactions(f.ctx, number, repository.PageRequest{Size: 100})
	require.NoError(t, err)
	return page.TotalItems
}

func TestCreateCard(t *testing.T) {
	f := newFixture(t)

	view := f.createCard(t, cardOne, alice)
	assert.Equal(t, "**** **** **** 0001", view.CardNumber)
	assert.Equal(t, "Alice", view.CardHolderName)
	assert.Equal(t, "0.00", view.Balance)
	assert.Equal(t, string(card.StatusActive), view.Status)
	assert.Equal(t, "RUB", view.Currency)

	_, err := f.svc.CreateCard(f.ctx, f.key(), commands.CreateCard{
		Number:     cardOne,
		OwnerEmail: bob,
		ExpiryDate: time.Now().AddDate(1, 0, 0),
	})
	assert.ErrorIs(t, err, domain.ErrCardAlreadyExists)

	_, err = f.svc.CreateCard(f.ctx, f.key(), commands.CreateCard{
		Number:     cardTwo,
		OwnerEmail: "nobody@x.com",
		ExpiryDate: time.Now().AddDate(1, 0, 0),
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	_, err = f.svc.CreateCard(f.ctx, f.key(), commands.CreateCard{
		Number:     cardTwo,
		OwnerEmail: alice,
		ExpiryDate: time.Now().AddDate(-1, 0, 0),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateCard_GeneratesNumber(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.CreateCard(f.ctx, f.key(), commands.CreateCard{
		OwnerEmail: alice,
		ExpiryDate: time.Now().AddDate(1, 0, 0),
		Currency:   "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", view.Currency)

	page, err := f.svc.ListCards(f.ctx, alice, nil, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, view, page.Items[0])
}

func TestCreateCard_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	cmd := commands.CreateCard{OwnerEmail: alice, ExpiryDate: time.Now().AddDate(1, 0, 0)}

	first, err := f.svc.CreateCard(f.ctx, "create-1", cmd)
	require.NoError(t, err)
	second, err := f.svc.CreateCard(f.ctx, "create-1", cmd)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	page, err := f.svc.ListAllCards(f.ctx, repository.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.TotalItems)
}

func TestReplenishAndTransfer(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, alice)

	view, err := f.svc.Replenish(f.ctx, f.key(), commands.Replenish{
		Number:   cardOne,
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "RUB",
	}, alice)
	require.NoError(t, err)
	assert.Equal(t, "CREDIT", view.Type)
	assert.Equal(t, "100.00", view.Amount)
	assert.Equal(t, "100.00", f.balance(t, cardOne, alice))
	assert.EqualValues(t, 1, f.txCount(t, cardOne))

	view, err = f.svc.Transfer(f.ctx, f.key(), commands.Transfer{
		From:     cardOne,
		To:       cardTwo,
		Amount:   decimal.RequireFromString("50.00"),
		Currency: "RUB",
	}, alice)
	require.NoError(t, err)
	assert.Equal(t, "TRANSFER", view.Type)
	assert.Equal(t, "SUCCESS", view.Status)
	assert.Equal(t, "50.00", f.balance(t, cardOne, alice))
	assert.Equal(t, "50.00", f.balance(t, cardTwo, alice))
	assert.EqualValues(t, 2, f.txCount(t, cardOne))
	assert.EqualValues(t, 1, f.txCount(t, cardTwo))
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.replenish(t, cardOne, alice, "50.00")

	_, err := f.svc.Withdraw(f.ctx, f.key(), commands.Withdraw{
		Number:   cardOne,
		Amount:   decimal.RequireFromString("200.00"),
		Currency: "RUB",
	}, alice)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "50.00", f.balance(t, cardOne, alice))
	assert.EqualValues(t, 1, f.txCount(t, cardOne))
}

func TestWithdraw_Boundary(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.replenish(t, cardOne, alice, "50.00")

	_, err := f.svc.Withdraw(f.ctx, f.key(), commands.Withdraw{
		Number:   cardOne,
		Amount:   decimal.RequireFromString("50.01"),
		Currency: "RUB",
	}, alice)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	view, err := f.svc.Withdraw(f.ctx, f.key(), commands.Withdraw{
		Number:   cardOne,
		Amount:   decimal.RequireFromString("50.00"),
		Currency: "RUB",
	}, alice)
	require.NoError(t, err)
	assert.Equal(t, "DEBIT", view.Type)
	assert.Equal(t, "0.00", f.balance(t, cardOne, alice))
}

func TestTransfer_FromBlockedCard(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, alice)
	f.replenish(t, cardOne, alice, "10.00")

	msg, err := f.svc.BlockCard(f.ctx, f.key(), cardOne)
	require.NoError(t, err)
	assert.Equal(t, cardsvc.MsgCardBlocked, msg)

	_, err = f.svc.Transfer(f.ctx, f.key(), commands.Transfer{
		From:     cardOne,
		To:       cardTwo,
		Amount:   decimal.RequireFromString("5.00"),
		Currency: "RUB",
	}, alice)
	assert.ErrorIs(t, err, domain.ErrCardBlocked)
	assert.Equal(t, "10.00", f.balance(t, cardOne, alice))
	assert.Equal(t, "0.00", f.balance(t, cardTwo, alice))

	_, err = f.svc.Replenish(f.ctx, f.key(), commands.Replenish{
		Number:   cardOne,
		Amount:   decimal.RequireFromString("1.00"),
		Currency: "RUB",
	}, alice)
	assert.ErrorIs(t, err, domain.ErrCardBlocked)

	msg, err = f.svc.ActivateCard(f.ctx, f.key(), cardOne)
	require.NoError(t, err)
	assert.Equal(t, cardsvc.MsgCardActivated, msg)
	f.replenish(t, cardOne, alice, "1.00")
}

func TestTransfer_Validation(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, alice)

	tests := []struct {
		name string
		cmd  commands.Transfer
		want error
	}{
		{"zero amount", commands.Transfer{From: cardOne, To: cardTwo, Amount: decimal.Zero, Currency: "RUB"}, domain.ErrValidation},
		{"negative amount", commands.Transfer{From: cardOne, To: cardTwo, Amount: decimal.NewFromInt(-1), Currency: "RUB"}, domain.ErrValidation},
		{"too precise", commands.Transfer{From: cardOne, To: cardTwo, Amount: decimal.RequireFromString("0.001"), Currency: "RUB"}, domain.ErrValidation},
		{"same card", commands.Transfer{From: cardOne, To: cardOne, Amount: decimal.NewFromInt(1), Currency: "RUB"}, domain.ErrValidation},
		{"bad number", commands.Transfer{From: "12", To: cardTwo, Amount: decimal.NewFromInt(1), Currency: "RUB"}, domain.ErrValidation},
		{"currency mismatch", commands.Transfer{From: cardOne, To: cardTwo, Amount: decimal.NewFromInt(1), Currency: "USD"}, domain.ErrValidation},
		{"unknown target", commands.Transfer{From: cardOne, To: "4000000000000099", Amount: decimal.NewFromInt(1), Currency: "RUB"}, domain.ErrCardNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Transfer(f.ctx, f.key(), tt.cmd, alice)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, bob)
	f.replenish(t, cardOne, alice, "10.00")

	_, err := f.svc.GetCard(f.ctx, cardOne, bob)
	assert.ErrorIs(t, err, domain.ErrNoAccessToOtherData)

	_, err = f.svc.GetCard(f.ctx, cardOne, "stranger@x.com")
	assert.ErrorIs(t, err, domain.ErrNoAccessToOtherData)

	_, err = f.svc.ListTransactions(f.ctx, cardOne, bob, repository.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrNoAccessToOtherData)

	_, err = f.svc.Withdraw(f.ctx, f.key(), commands.Withdraw{
		Number: cardOne, Amount: decimal.NewFromInt(1), Currency: "RUB",
	}, bob)
	assert.ErrorIs(t, err, domain.ErrNoAccessToOtherData)

	_, err = f.svc.Replenish(f.ctx, f.key(), commands.Replenish{
		Number: cardOne, Amount: decimal.NewFromInt(1), Currency: "RUB",
	}, bob)
	assert.ErrorIs(t, err, domain.ErrNoAccessToOtherData)

	_, err = f.svc.Transfer(f.ctx, f.key(), commands.Transfer{
		From: cardOne, To: cardTwo, Amount: decimal.NewFromInt(1), Currency: "RUB",
	}, bob)
	assert.ErrorIs(t, err, domain.ErrNoAccessToOtherData)

	_, err = f.svc.RequestBlock(f.ctx, f.key(), cardOne, bob)
	assert.ErrorIs(t, err, domain.ErrNoAccessToOtherData)

	_, err = f.svc.ListCards(f.ctx, "stranger@x.com", nil, repository.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	// A transfer into another customer's card is allowed.
	_, err = f.svc.Transfer(f.ctx, f.key(), commands.Transfer{
		From: cardOne, To: cardTwo, Amount: decimal.NewFromInt(4), Currency: "RUB",
	}, alice)
	require.NoError(t, err)
	assert.Equal(t, "4.00", f.balance(t, cardTwo, bob))
	assert.Equal(t, "6.00", f.balance(t, cardOne, alice))
}

func TestRequestBlock(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)

	msg, err := f.svc.RequestBlock(f.ctx, f.key(), cardOne, alice)
	require.NoError(t, err)
	assert.Equal(t, cardsvc.MsgCardBlockedByYou, msg)

	_, err = f.svc.RequestBlock(f.ctx, f.key(), cardOne, alice)
	assert.ErrorIs(t, err, domain.ErrAlreadyBlocked)

	_, err = f.svc.RequestBlock(f.ctx, f.key(), cardTwo, alice)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)

	// Admin block is safe to repeat.
	_, err = f.svc.BlockCard(f.ctx, f.key(), cardOne)
	require.NoError(t, err)
}

func TestIdempotentReplay_AppliesOnce(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.replenish(t, cardOne, alice, "100.00")

	cmd := commands.Withdraw{Number: cardOne, Amount: decimal.RequireFromString("30.00"), Currency: "RUB"}
	first, err := f.svc.Withdraw(f.ctx, "withdraw-1", cmd, alice)
	require.NoError(t, err)
	second, err := f.svc.Withdraw(f.ctx, "withdraw-1", cmd, alice)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "70.00", f.balance(t, cardOne, alice))
	assert.EqualValues(t, 2, f.txCount(t, cardOne))

	// Keys are scoped by operation.
	_, err = f.svc.Replenish(f.ctx, "withdraw-1", commands.Replenish(cmd), alice)
	require.NoError(t, err)
	assert.Equal(t, "100.00", f.balance(t, cardOne, alice))
}

func TestIdempotentReplay_FailureIsNotStored(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)

	cmd := commands.Withdraw{Number: cardOne, Amount: decimal.RequireFromString("10.00"), Currency: "RUB"}
	_, err := f.svc.Withdraw(f.ctx, "retry-1", cmd, alice)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	f.replenish(t, cardOne, alice, "10.00")
	_, err = f.svc.Withdraw(f.ctx, "retry-1", cmd, alice)
	require.NoError(t, err)
	assert.Equal(t, "0.00", f.balance(t, cardOne, alice))
}

func TestInvalidIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)

	_, err := f.svc.Withdraw(f.ctx, "  ", commands.Withdraw{
		Number: cardOne, Amount: decimal.NewFromInt(1), Currency: "RUB",
	}, alice)
	assert.ErrorIs(t, err, domain.ErrInvalidIdempotencyKey)

	_, err = f.svc.BlockCard(f.ctx, "", cardOne)
	assert.ErrorIs(t, err, domain.ErrInvalidIdempotencyKey)
}

func TestConcurrentWithdraw_SameKeyRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.replenish(t, cardOne, alice, "100.00")

	cmd := commands.Withdraw{Number: cardOne, Amount: decimal.RequireFromString("1.00"), Currency: "RUB"}
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Withdraw(f.ctx, "same-key", cmd, alice)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, "99.00", f.balance(t, cardOne, alice))
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, alice)
	f.replenish(t, cardOne, alice, "100.00")
	f.replenish(t, cardTwo, alice, "100.00")

	const rounds = 20
	var wg sync.WaitGroup
	for i := range rounds {
		from, to := cardOne, cardTwo
		if i%2 == 1 {
			from, to = to, from
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(f.ctx, fmt.Sprintf("opposite-%d", i), commands.Transfer{
				From: from, To: to, Amount: decimal.RequireFromString("1.00"), Currency: "RUB",
			}, alice)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	one := decimal.RequireFromString(f.balance(t, cardOne, alice))
	two := decimal.RequireFromString(f.balance(t, cardTwo, alice))
	assert.True(t, one.Add(two).Equal(decimal.NewFromInt(200)), "total balance must be conserved")
	assert.True(t, one.Equal(decimal.NewFromInt(100)))
}

func TestUpdateCard(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, alice)
	expiry := time.Date(2040, 1, 31, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.UpdateCard(f.ctx, commands.UpdateCard{Number: cardOne, NewNumber: cardTwo, NewExpiry: expiry})
	assert.ErrorIs(t, err, domain.ErrCardAlreadyExists)

	view, err := f.svc.UpdateCard(f.ctx, commands.UpdateCard{
		Number: cardOne, NewNumber: "4000000000000003", NewExpiry: expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "**** **** **** 0003", view.CardNumber)
	assert.Equal(t, "2040-01-31", view.ExpiryDate)

	_, err = f.svc.GetCard(f.ctx, cardOne, alice)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
}

func TestDeleteCard(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, alice)
	f.replenish(t, cardOne, alice, "10.00")
	_, err := f.svc.Transfer(f.ctx, f.key(), commands.Transfer{
		From: cardOne, To: cardTwo, Amount: decimal.RequireFromString("4.00"), Currency: "RUB",
	}, alice)
	require.NoError(t, err)

	msg, err := f.svc.DeleteCard(f.ctx, f.key(), cardOne)
	require.NoError(t, err)
	assert.Equal(t, cardsvc.MsgCardDeleted, msg)

	_, err = f.svc.GetCard(f.ctx, cardOne, alice)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
	_, err = f.svc.DeleteCard(f.ctx, f.key(), cardOne)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)

	// The transfer it sent goes with it.
	assert.Equal(t, "4.00", f.balance(t, cardTwo, alice))
	assert.Zero(t, f.txCount(t, cardTwo))
}

func TestListCards_StatusFilter(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)
	f.createCard(t, cardTwo, alice)
	f.createCard(t, "4000000000000003", bob)
	_, err := f.svc.BlockCard(f.ctx, f.key(), cardTwo)
	require.NoError(t, err)

	page, err := f.svc.ListCards(f.ctx, alice, nil, repository.PageRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalItems)

	blocked := card.StatusBlocked
	page, err = f.svc.ListCards(f.ctx, alice, &blocked, repository.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "**** **** **** 0002", page.Items[0].CardNumber)

	page, err = f.svc.ListCards(f.ctx, alice, nil, repository.PageRequest{Page: 1, Size: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalPages)
}

func TestExpireCards(t *testing.T) {
	f := newFixture(t)
	f.createCard(t, cardOne, alice)

	n, err := f.svc.ExpireCards(f.ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.ExpireCards(f.ctx, time.Now().AddDate(3, 0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	view, err := f.svc.GetCard(f.ctx, cardOne, alice)
	require.NoError(t, err)
	assert.Equal(t, string(card.StatusExpired), view.Status)
}
