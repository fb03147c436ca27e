package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	eventExecuted = "MonthlyPaymentExecuted"
	eventFailed   = "MonthlyPaymentFailed"
)

// paymentABI covers the read surface shared by one-off and recurring payment contracts.
// One-off contracts expose released/cancelled only; recurring ones have no released getter.
const paymentABI = `[
	{"type":"function","name":"totalMonths","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"executedMonths","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"nextMonthToProcess","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"cancelled","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"released","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"monthExecuted","stateMutability":"view","inputs":[{"name":"month","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"MonthlyPaymentExecuted","anonymous":false,"inputs":[
		{"name":"monthNumber","type":"uint256","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"timestamp","type":"uint256","indexed":false}]},
	{"type":"event","name":"MonthlyPaymentFailed","anonymous":false,"inputs":[
		{"name":"monthNumber","type":"uint256","indexed":false},
		{"name":"reason","type":"string","indexed":false}]}
]`

func parsePaymentABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(paymentABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("abi.JSON: %w", err)
	}
	return parsed, nil
}
