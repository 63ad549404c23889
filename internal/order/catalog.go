package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nao1215/storefront/pkg/httpclient"
)

var (
	// ErrUnknownProduct は注文明細の商品がproductサービスに存在しないことを表す。
	ErrUnknownProduct = errors.New("商品が存在しません")
	// ErrCatalogUnavailable はproductサービスに問い合わせできないことを表す。
	ErrCatalogUnavailable = errors.New("productサービスに接続できません")
)

// ProductCatalog は注文明細の商品が存在するかを確認する。
type ProductCatalog interface {
	Exists(ctx context.Context, productID string) error
}

// RemoteCatalog はproductサービスのAPIで商品の存在を確認する。
type RemoteCatalog struct {
	client *httpclient.Client
}

// NewRemoteCatalog は新しいRemoteCatalogを生成する。
func NewRemoteCatalog(client *httpclient.Client) *RemoteCatalog {
	return &RemoteCatalog{client: client}
}

// Exists は商品が存在すればnilを返す。
// 存在しない場合は ErrUnknownProduct、問い合わせに失敗した場合は ErrCatalogUnavailable を返す。
func (r *RemoteCatalog) Exists(ctx context.Context, productID string) error {
	var product struct {
		ID string `json:"id"`
	}
	err := r.client.GetJSON(ctx, "/api/v1/products/"+url.PathEscape(productID), &product)
	if err == nil {
		return nil
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	return errors.Join(ErrCatalogUnavailable, err)
}
