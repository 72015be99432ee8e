package token

import (
	"fmt"

	"yzyvault/crypto"
)

func metaKey(token crypto.Address) []byte {
	return []byte(fmt.Sprintf("token/%x/meta", token.Bytes()))
}

func balanceKey(token, holder crypto.Address) []byte {
	return []byte(fmt.Sprintf("token/%x/balance/%x", token.Bytes(), holder.Bytes()))
}

func allowanceKey(token, owner, spender crypto.Address) []byte {
	return []byte(fmt.Sprintf("token/%x/allowance/%x/%x", token.Bytes(), owner.Bytes(), spender.Bytes()))
}
