package service

import (
	"errors"

	"github.com/trafficportal/linkshortener/repository"
	"github.com/trafficportal/linkshortener/utils"
)

var (
	ErrDomainRequired   = errors.New("no domain given and no default domain configured")
	ErrDomainNotAllowed = errors.New("domain not in allow list")
	ErrKeyTaken         = errors.New("custom key is already in use")
	ErrPreviewDisabled  = errors.New("screenshot previews are not configured")
	ErrInvalidShortURL  = utils.ErrInvalidShortURL
	ErrLinkNotFound     = repository.ErrLinkNotFound
)
