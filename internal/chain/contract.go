package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// allocationExchangeABI is the minimal ABI surface this core needs from
// the allocation-exchange contract: redeemMany takes parallel arrays of
// allocation id, amount, and signature; allocationsRedeemed is a view
// function keyed by allocation id.
const allocationExchangeABI = `[
  {"type":"function","name":"redeemMany","stateMutability":"nonpayable",
   "inputs":[
     {"name":"allocationIDs","type":"bytes20[]"},
     {"name":"amounts","type":"uint256[]"},
     {"name":"signatures","type":"bytes"}
   ],
   "outputs":[]},
  {"type":"function","name":"allocationsRedeemed","stateMutability":"view",
   "inputs":[{"name":"allocationID","type":"bytes20"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

func parsedAllocationExchangeABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(allocationExchangeABI))
}

// boundAllocationExchange wraps bind.BoundContract the way the teacher's
// abigen-generated SandboxServing does, kept to the handful of methods
// this core calls rather than a full generated binding.
type boundAllocationExchange struct {
	contract *bind.BoundContract
	address  common.Address
}

func newBoundAllocationExchange(address common.Address, backend bind.ContractBackend) (*boundAllocationExchange, error) {
	parsed, err := parsedAllocationExchangeABI()
	if err != nil {
		return nil, err
	}
	return &boundAllocationExchange{
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:  address,
	}, nil
}

var errInvalidAllocationID = errors.New("chain: allocation id must decode to 20 bytes")

func toBytes20(hex string) ([20]byte, error) {
	var out [20]byte
	b := common.FromHex(hex)
	if len(b) != 20 {
		return out, errInvalidAllocationID
	}
	copy(out[:], b)
	return out, nil
}
