// Package environment discovers the backend environments relevant to the
// current checkout.
//
// Discovery combines two kinds of source: one query per GitHub repository
// found among the checkout's git remotes, and one global listing. Rows from
// the per-repository queries carry a repository hint; rows that only the
// global listing knows about do not. Sources that fail are skipped, so a
// listing is always returned, possibly empty.
package environment
