package chain

import "strconv"

// TransactionDetail is the parsed result of a getTransaction call, trimmed
// to the fields payment verification needs.
type TransactionDetail struct {
	BlockTime int64            `json:"blockTime"`
	Meta      *TransactionMeta `json:"meta"`
}

// TransactionMeta carries the log messages (for memo correlation) and the
// token balances before and after the transaction (for the credited amount).
type TransactionMeta struct {
	LogMessages       []string       `json:"logMessages"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
}

// TokenBalance is one account's token balance snapshot.
type TokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	UITokenAmount UITokenAmount `json:"uiTokenAmount"`
}

// UITokenAmount is the human-scaled token amount as reported by the node.
type UITokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       int    `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// SignatureInfo is one entry of getSignaturesForAddress.
type SignatureInfo struct {
	Signature string `json:"signature"`
	BlockTime int64  `json:"blockTime"`
	Memo      string `json:"memo"`
}

// CreditedAmount returns how much of the given mint was credited to wallet
// by this transaction, derived from the before/after balance delta. Returns
// zero when the wallet holds no matching token account in the transaction.
func (t *TransactionDetail) CreditedAmount(wallet, mint string) float64 {
	if t.Meta == nil {
		return 0
	}
	for _, post := range t.Meta.PostTokenBalances {
		if post.Owner != wallet || post.Mint != mint {
			continue
		}
		postAmount, _ := strconv.ParseFloat(post.UITokenAmount.UIAmountString, 64)
		preAmount := 0.0
		for _, pre := range t.Meta.PreTokenBalances {
			if pre.AccountIndex == post.AccountIndex {
				preAmount, _ = strconv.ParseFloat(pre.UITokenAmount.UIAmountString, 64)
				break
			}
		}
		return postAmount - preAmount
	}
	return 0
}
