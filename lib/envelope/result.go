// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

// QueryResult is the decoded upstream response to a FetchResult or
// FetchDeferred.
type QueryResult struct {
	Success bool      `json:"success"`
	Host    string    `json:"host,omitempty"`
	Pods    []Pod     `json:"pods,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError is the error record the upstream API reports alongside
// success=false.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"msg"`
}

// Pod is one named sub-unit of a query result. A pod either carries
// its subpods inline or, in deferred mode, a Deferred reference that
// must be fetched with FetchDeferred.
type Pod struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Subpods  []Subpod `json:"subpods,omitempty"`
	Deferred string   `json:"async,omitempty"`
}

// Subpod is one panel inside a pod.
type Subpod struct {
	Title string `json:"title"`
	Image *Image `json:"img,omitempty"`
}

// Image is a rendered image reference inside a subpod.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ImageData is what the page context splices into an event: the image
// location and size plus the host that served the query.
type ImageData struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Host   string `json:"host,omitempty"`
}

// FindPod returns the pod with the given identifier.
func (r *QueryResult) FindPod(id string) (Pod, bool) {
	for _, pod := range r.Pods {
		if pod.ID == id {
			return pod, true
		}
	}
	return Pod{}, false
}
