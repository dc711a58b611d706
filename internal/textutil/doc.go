// Package textutil scores how well a candidate name appears in noisy
// recognized text.
//
// Text is normalized (case-folded, diacritics removed, punctuation outside the
// business-name character set replaced by spaces) and cut into windows: every
// line plus every run of up to N consecutive tokens. A candidate is scored
// against each window with a token-set ratio and the best window wins.
package textutil
