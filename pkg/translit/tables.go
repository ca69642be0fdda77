package translit

// table holds lowercase runes only; lookup restores the case.
var table = map[rune]string{
	// Russian
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "yo", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "shch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
	// Ukrainian, Belarusian
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g", 'ў': "u",
	// Serbian, Macedonian
	'ђ': "dj", 'ј': "j", 'љ': "lj", 'њ': "nj", 'ћ': "c",
	'џ': "dz", 'ѓ': "gj", 'ќ': "kj", 'ѕ': "dz",
	// Kazakh, Kyrgyz, Mongolian
	'ә': "a", 'ғ': "gh", 'қ': "q", 'ң': "ng", 'ө': "o",
	'ұ': "u", 'ү': "u", 'һ': "h",

	// Greek
	'α': "a", 'β': "v", 'γ': "g", 'δ': "d", 'ε': "e",
	'ζ': "z", 'η': "i", 'θ': "th", 'ι': "i", 'κ': "k",
	'λ': "l", 'μ': "m", 'ν': "n", 'ξ': "x", 'ο': "o",
	'π': "p", 'ρ': "r", 'σ': "s", 'ς': "s", 'τ': "t",
	'υ': "y", 'φ': "f", 'χ': "ch", 'ψ': "ps", 'ω': "o",

	// Latin letters with no canonical decomposition
	'ø': "o", 'æ': "ae", 'œ': "oe", 'ß': "ss", 'ł': "l",
	'đ': "d", 'ð': "d", 'þ': "th", 'ı': "i", 'ħ': "h",
	'ŋ': "ng", 'ŧ': "t", 'ĸ': "q", 'ſ': "s",

	// Arabic and Persian consonants; vowels are not written so the result is
	// best-effort only.
	'ا': "a", 'آ': "a", 'أ': "a", 'إ': "i", 'ب': "b",
	'ت': "t", 'ث': "th", 'ج': "j", 'ح': "h", 'خ': "kh",
	'د': "d", 'ذ': "dh", 'ر': "r", 'ز': "z", 'س': "s",
	'ش': "sh", 'ص': "s", 'ض': "d", 'ط': "t", 'ظ': "z",
	'ع': "", 'غ': "gh", 'ف': "f", 'ق': "q", 'ك': "k",
	'ل': "l", 'م': "m", 'ن': "n", 'ه': "h", 'و': "w",
	'ي': "y", 'ى': "a", 'ة': "h", 'ء': "", 'ؤ': "w",
	'ئ': "y", 'پ': "p", 'چ': "ch", 'ژ': "zh", 'گ': "g",
	'ک': "k", 'ی': "y",

	// Typography
	'\u2116': "No", '\u2010': "-", '\u2011': "-", '\u2012': "-", '\u2013': "-", '\u2014': "-",
	'\u2019': "'", '\u2018': "'", '\u02bc': "'", '\u201c': "\"", '\u201d': "\"",
	'\u00ab': "\"", '\u00bb': "\"", '\u00b7': " ", '\u00a0': " ",
}

// digitZeros lists the zero code point of decimal digit blocks outside ASCII.
var digitZeros = []rune{
	0x0660, // Arabic-Indic
	0x06F0, // Extended Arabic-Indic
	0x0966, // Devanagari
	0x09E6, // Bengali
	0x0E50, // Thai
	0xFF10, // Fullwidth
}
