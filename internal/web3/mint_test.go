package web3

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/pokemint/internal/wallet"
)

func TestSubmitMint(t *testing.T) {
	t.Run("requires signer", func(t *testing.T) {
		w := newFakeWallet(11155111)
		c := newTestClient(t, w, nil)

		_, err := c.SubmitMint(context.Background())
		assert.ErrorIs(t, err, ErrNoSigner)
		assert.Empty(t, w.backend.Sent())
	})

	t.Run("sends mintNFT to the contract", func(t *testing.T) {
		w := newFakeWallet(11155111)
		c := newTestClient(t, w, nil)
		c.AttachSigner(alice)

		h, err := c.SubmitMint(context.Background())
		require.NoError(t, err)

		sent := w.backend.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, sent[0].Hash(), h.TxHash)
		assert.Equal(t, testContract, *sent[0].To())
		assert.Equal(t, int64(0), sent[0].Value().Int64())
		assert.Equal(t, int64(11155111), sent[0].ChainId().Int64())

		data, err := c.Contract().MintCalldata()
		require.NoError(t, err)
		assert.Equal(t, data, sent[0].Data())

		require.Len(t, w.approvals, 1)
		assert.Equal(t, alice, w.approvals[0].From)
		assert.Equal(t, "mintNFT()", w.approvals[0].Action)
		assert.Contains(t, w.approvals[0].MaxCost, "ETH")
		assert.Equal(t, alice, h.From)
	})

	t.Run("declined approval", func(t *testing.T) {
		w := newFakeWallet(11155111)
		w.signErr = wallet.ErrUserRejected
		c := newTestClient(t, w, nil)
		c.AttachSigner(alice)

		_, err := c.SubmitMint(context.Background())
		assert.ErrorIs(t, err, ErrUserRejected)
		assert.Empty(t, w.backend.Sent())
	})

	t.Run("unauthorized signer", func(t *testing.T) {
		w := newFakeWallet(11155111)
		w.signErr = wallet.ErrNotAuthorized
		c := newTestClient(t, w, nil)
		c.AttachSigner(alice)

		_, err := c.SubmitMint(context.Background())
		assert.ErrorIs(t, err, ErrNoSigner)
	})

	t.Run("send failure", func(t *testing.T) {
		w := newFakeWallet(11155111)
		w.backend.SetSendErr(errors.New("nonce too low"))
		c := newTestClient(t, w, nil)
		c.AttachSigner(alice)

		_, err := c.SubmitMint(context.Background())
		assert.ErrorIs(t, err, ErrProvider)
	})
}

func submitted(t *testing.T) (*fakeWallet, *Client, Handle) {
	t.Helper()
	w := newFakeWallet(11155111)
	c := newTestClient(t, w, nil)
	c.AttachSigner(alice)
	h, err := c.SubmitMint(context.Background())
	require.NoError(t, err)
	return w, c, h
}

func TestAwaitConfirmation(t *testing.T) {
	t.Run("waits until mined", func(t *testing.T) {
		w, c, h := submitted(t)

		go func() {
			time.Sleep(20 * time.Millisecond)
			w.backend.SetReceipt(h.TxHash, &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h.TxHash})
		}()

		receipt, err := c.AwaitConfirmation(context.Background(), h)
		require.NoError(t, err)
		assert.Equal(t, h.TxHash, receipt.TxHash)
	})

	t.Run("reverted", func(t *testing.T) {
		w, c, h := submitted(t)
		w.backend.SetReceipt(h.TxHash, &types.Receipt{Status: types.ReceiptStatusFailed})

		receipt, err := c.AwaitConfirmation(context.Background(), h)
		assert.ErrorIs(t, err, ErrTransactionReverted)
		assert.NotNil(t, receipt)
	})

	t.Run("gives up after consecutive failures", func(t *testing.T) {
		w, c, h := submitted(t)
		w.backend.SetReceiptErr(errors.New("bad gateway"))

		_, err := c.AwaitConfirmation(context.Background(), h)
		assert.ErrorIs(t, err, ErrProvider)
	})

	t.Run("context cancellation", func(t *testing.T) {
		_, c, h := submitted(t)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := c.AwaitConfirmation(ctx, h)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
