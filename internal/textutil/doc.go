// Package textutil orders display names the way listeners expect.
//
// Names are compared with a locale-aware collator (pinyin order for Han
// script under the default Chinese tag) after every run of decimal digits has
// been removed, so "CCTV1" and "CCTV13" sort as equals and keep their input
// order.
package textutil
