// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// Go'da error'lar basit değerlerdir (string taşıyan struct'lar).
// errors.New() ile sabit error değişkenleri tanımlarız.
// Böylece error karşılaştırması string yerine referans ile yapılır:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
//
// Bu, typo'ya açık string karşılaştırmasından çok daha güvenlidir.
package pkg

import "errors"

// Domain-level error'lar.
// HTTP tarafında status code'a, WebSocket tarafında error event'inin
// "kind" alanına map'lenir. Service katmanı bunları fmt.Errorf("%w: ...")
// ile wrap ederek döner.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrRateLimited   = errors.New("rate limited")
	ErrBlocked       = errors.New("blocked")
	ErrTokenExpired  = errors.New("token expired")
	ErrInternal      = errors.New("internal error")
)

// Error kind sabitleri — WebSocket error event'lerinin "kind" alanı.
// Client bu değerlere göre davranır: auth_invalid/auth_expired socket'i
// kapatıp login ekranına döner, diğerleri sadece toast gösterir.
const (
	KindAuthInvalid  = "auth_invalid"
	KindAuthExpired  = "auth_expired"
	KindUnauthorized = "unauthorized"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindValidation   = "validation"
	KindRateLimited  = "rate_limited"
	KindBlocked      = "blocked"
	KindInternal     = "internal"
)

// Kind, bir domain error'ını taksonomideki kind string'ine çevirir.
// Wrap edilmiş error'lar errors.Is ile doğru match eder.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return KindAuthExpired
	case errors.Is(err, ErrUnauthorized):
		return KindAuthInvalid
	case errors.Is(err, ErrForbidden):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrBadRequest):
		return KindValidation
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	default:
		return KindInternal
	}
}

// IsFatal, error'ın socket'i kapatmayı gerektirip gerektirmediğini döner.
// Sadece auth hataları fatal'dır — client state temizleyip login'e döner.
func IsFatal(err error) bool {
	k := Kind(err)
	return k == KindAuthInvalid || k == KindAuthExpired
}
