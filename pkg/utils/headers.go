package utils

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CommonHeaders are sent with every request to a manga site.
func CommonHeaders() map[string]string {
	return map[string]string{
		"User-Agent":         userAgent,
		"Accept-Language":    "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7",
		"Sec-Ch-Ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": `"Windows"`,
	}
}

func PageHeaders(referer string) map[string]string {
	return withReferer(MergeHeaders(CommonHeaders(), map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Sec-Fetch-Site":            "same-origin",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Dest":            "document",
		"Upgrade-Insecure-Requests": "1",
	}), referer)
}

func AjaxHeaders(referer string) map[string]string {
	return withReferer(MergeHeaders(CommonHeaders(), map[string]string{
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"X-Requested-With": "XMLHttpRequest",
		"Sec-Fetch-Site":   "same-origin",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Dest":   "empty",
	}), referer)
}

func ImageHeaders(referer string) map[string]string {
	return withReferer(MergeHeaders(CommonHeaders(), map[string]string{
		"Accept":         "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8",
		"Sec-Fetch-Site": "cross-site",
		"Sec-Fetch-Mode": "no-cors",
		"Sec-Fetch-Dest": "image",
	}), referer)
}

// MergeHeaders combines header sets; later sets win.
func MergeHeaders(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

func withReferer(h map[string]string, referer string) map[string]string {
	if referer != "" {
		h["Referer"] = referer
	}
	return h
}
