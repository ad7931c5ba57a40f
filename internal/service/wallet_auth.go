package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"arcade_arena/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const loginPrefix = "Sign in to Arcade Arena: "

// LoginMessage is the text a wallet signs to obtain a token.
func LoginMessage(issuedAt time.Time) string {
	return loginPrefix + strconv.FormatInt(issuedAt.Unix(), 10)
}

// ValidateWalletLogin verifies a personal_sign signature over a login
// message and checks that the embedded timestamp is recent (within 10
// minutes) to mitigate replay attacks.
func ValidateWalletLogin(wallet, message, signature string, now time.Time) bool {
	if !common.IsHexAddress(wallet) {
		return false
	}

	tsStr, ok := strings.CutPrefix(message, loginPrefix)
	if !ok {
		return false
	}
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return false
	}
	// allow small clock skew
	if now.Unix()-ts > 600 || ts-now.Unix() > 60 {
		return false
	}

	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	// wallets produce v in {27, 28}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(personalHash(message), sig)
	if err != nil {
		return false
	}
	signer := crypto.PubkeyToAddress(*pub).Hex()
	return domain.NormalizeWallet(signer) == domain.NormalizeWallet(wallet)
}

func personalHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}
