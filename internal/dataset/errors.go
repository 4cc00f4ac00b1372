package dataset

import "errors"

// ErrDatasetUnavailable is returned when a page could not be retrieved
// after every retry attempt, whether served fresh or from a corrupt cache
// entry. Per §7 this is fatal to the whole run.
var ErrDatasetUnavailable = errors.New("dataset: unavailable after retries")
