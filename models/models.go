package models

// PriceCheckRequest asks for a live price check of one product page.
type PriceCheckRequest struct {
	URL string `json:"url" validate:"required"`
}

// TrackPriceRequest starts a price watch on a purchased product.
type TrackPriceRequest struct {
	PurchaseID    string  `json:"purchase_id" validate:"required,uuid"`
	ProductURL    string  `json:"product_url" validate:"required"`
	ProductName   string  `json:"product_name,omitempty" validate:"max=500"`
	OriginalPrice float64 `json:"original_price" validate:"gt=0,lte=999999.99"`
}

// ExtractReceiptRequest carries either a receipt image or already
// transcribed receipt text.
type ExtractReceiptRequest struct {
	Image     string `json:"image,omitempty" validate:"required_without=Text"`
	MediaType string `json:"media_type,omitempty" validate:"required_with=Image"`
	Text      string `json:"text,omitempty" validate:"required_without=Image,max=50000"`
}

// AnalyzeReturnRequest asks whether a purchase is still returnable.
type AnalyzeReturnRequest struct {
	Purchase   PurchaseSummary `json:"purchase"`
	PolicyText string          `json:"policy_text" validate:"required,max=100000"`
}

// ReturnPolicyRequest names the merchant whose policy should be scraped.
type ReturnPolicyRequest struct {
	MerchantName   string `json:"merchant_name" validate:"required,max=255"`
	MerchantDomain string `json:"merchant_domain,omitempty" validate:"max=255"`
}

// SuggestURLRequest asks for product pages matching a purchased item.
type SuggestURLRequest struct {
	ProductName  string `json:"product_name" validate:"required,max=500"`
	MerchantName string `json:"merchant_name" validate:"required,max=255"`
}

// ProductURLSuggestion is one candidate product page.
type ProductURLSuggestion struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Confidence string `json:"confidence"`
	Source     string `json:"source"`
}

// URLSuggestions is the answer to a SuggestURLRequest.
type URLSuggestions struct {
	Suggestions []ProductURLSuggestion `json:"suggestions"`
	Query       string                 `json:"query"`
}
