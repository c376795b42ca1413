package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FakeBackend is an in-memory node used by tests in place of an ethclient.
// Zero values answer every call successfully.
type FakeBackend struct {
	mu sync.Mutex

	chainID    *big.Int
	chainIDErr error
	head       uint64
	nonce      uint64
	gasPrice   *big.Int
	tipCap     *big.Int
	gas        uint64
	balances   map[common.Address]*big.Int

	callResult []byte
	callErr    error
	calls      []ethereum.CallMsg

	sent    []*types.Transaction
	sendErr error

	receipts   map[common.Hash]*types.Receipt
	receiptErr error

	logs      []types.Log
	filterErr error
	filters   []ethereum.FilterQuery

	closed bool
}

// NewFakeBackend returns a backend reporting chainID.
func NewFakeBackend(chainID int64) *FakeBackend {
	return &FakeBackend{
		chainID:  big.NewInt(chainID),
		gasPrice: big.NewInt(2_000_000_000),
		tipCap:   big.NewInt(1_000_000_000),
		gas:      120_000,
		receipts: make(map[common.Hash]*types.Receipt),
		balances: make(map[common.Address]*big.Int),
	}
}

func (b *FakeBackend) SetChainID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainID = big.NewInt(id)
}

func (b *FakeBackend) SetChainIDErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainIDErr = err
}

func (b *FakeBackend) SetHead(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = n
}

func (b *FakeBackend) SetCallResult(data []byte, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callResult = data
	b.callErr = err
}

func (b *FakeBackend) SetSendErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

func (b *FakeBackend) SetReceiptErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiptErr = err
}

func (b *FakeBackend) SetFilterErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filterErr = err
}

func (b *FakeBackend) SetReceipt(hash common.Hash, receipt *types.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = receipt
}

// AddLog appends a log that FilterLogs returns when its block is in range.
func (b *FakeBackend) AddLog(l types.Log) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = append(b.logs, l)
	if l.BlockNumber > b.head {
		b.head = l.BlockNumber
	}
}

func (b *FakeBackend) Calls() []ethereum.CallMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ethereum.CallMsg(nil), b.calls...)
}

func (b *FakeBackend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

func (b *FakeBackend) Filters() []ethereum.FilterQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), b.filters...)
}

func (b *FakeBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *FakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chainIDErr != nil {
		return nil, b.chainIDErr
	}
	return new(big.Int).Set(b.chainID), nil
}

func (b *FakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head, nil
}

// SetBalance sets the native balance reported for account.
func (b *FakeBackend) SetBalance(account common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = new(big.Int).Set(wei)
}

func (b *FakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if wei, ok := b.balances[account]; ok {
		return new(big.Int).Set(wei), nil
	}
	return new(big.Int), nil
}

func (b *FakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *FakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.gasPrice), nil
}

func (b *FakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.tipCap), nil
}

func (b *FakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gas, nil
}

func (b *FakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, msg)
	return b.callResult, b.callErr
}

func (b *FakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	b.nonce++
	return nil
}

func (b *FakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.receiptErr != nil {
		return nil, b.receiptErr
	}
	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *FakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filters = append(b.filters, q)
	if b.filterErr != nil {
		return nil, b.filterErr
	}
	var out []types.Log
	for _, l := range b.logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (b *FakeBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
