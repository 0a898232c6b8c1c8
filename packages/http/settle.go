package http

import "fmt"

// Settle resolves or rejects based on the response status. A zero status,
// a missing validator, or a passing validator resolves.
func Settle(resolve func(*Response), reject func(error), resp *Response) {
	var validate StatusValidator
	if resp.Config != nil {
		validate = resp.Config.statusValidator()
	}
	if resp.Status == 0 || validate == nil || validate(resp.Status) {
		resolve(resp)
		return
	}
	reject(newError(
		KindStatus,
		fmt.Sprintf("Request failed with status code %d", resp.Status),
		resp.Config,
		"",
		resp.Request,
		resp,
	))
}
