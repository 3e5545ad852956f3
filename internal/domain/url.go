package domain

import (
	"errors"
	"regexp"
	"strings"
)

var ErrUnrecognizedURL = errors.New("unrecognized marketplace url")

type urlPattern struct {
	marketplace Marketplace
	re          *regexp.Regexp
}

// Ordered: the first pattern that matches wins.
var productURLPatterns = []urlPattern{
	{MarketplaceWildberries, regexp.MustCompile(`wildberries\.ru/catalog/(\d+)`)},
	{MarketplaceWildberries, regexp.MustCompile(`wb\.ru/catalog/(\d+)`)},
	{MarketplaceOzon, regexp.MustCompile(`ozon\.ru/product/[^/]*-(\d+)`)},
	{MarketplaceOzon, regexp.MustCompile(`ozon\.ru/product/(\d+)`)},
	{MarketplaceOzon, regexp.MustCompile(`ozon\.ru/t/(\w+)`)},
	{MarketplaceAliExpress, regexp.MustCompile(`aliexpress\.(?:com|ru)/item/(\d+)`)},
	{MarketplaceAliExpress, regexp.MustCompile(`aliexpress\.(?:com|ru)/.*?/(\d+)\.html`)},
	{MarketplaceAliExpress, regexp.MustCompile(`a\.aliexpress\.com/_(\w+)`)},
	{MarketplaceAmazon, regexp.MustCompile(`amazon\.(?:com|co\.uk|de|fr|it|es)/dp/([A-Z0-9]{10})`)},
	{MarketplaceAmazon, regexp.MustCompile(`amazon\.(?:com|co\.uk|de|fr|it|es)/.*?/dp/([A-Z0-9]{10})`)},
	{MarketplaceAmazon, regexp.MustCompile(`amzn\.to/(\w+)`)},
}

// ParseProductURL extracts the marketplace and its listing id from a product link.
func ParseProductURL(raw string) (Marketplace, string, error) {
	trimmed := strings.TrimSpace(raw)
	for _, pattern := range productURLPatterns {
		match := pattern.re.FindStringSubmatch(trimmed)
		if match != nil {
			return pattern.marketplace, match[1], nil
		}
	}
	return "", "", ErrUnrecognizedURL
}
