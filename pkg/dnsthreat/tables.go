package dnsthreat

// standardQueryTypes are the record types ordinary clients ask for. Any
// other type counts as unusual.
var standardQueryTypes = map[string]struct{}{
	"A": {}, "AAAA": {}, "PTR": {}, "MX": {}, "CNAME": {},
	"NS": {}, "SOA": {}, "SRV": {}, "HTTPS": {}, "SVCB": {},
}

// englishBigrams holds the frequency in percent of the common letter pairs
// of English text. Pairs not listed are treated as 0.
var englishBigrams = map[string]float64{
	"th": 3.56, "he": 3.07, "in": 2.43, "er": 2.05, "an": 1.99, "re": 1.85,
	"on": 1.76, "at": 1.49, "en": 1.45, "nd": 1.35, "ti": 1.34, "es": 1.34,
	"or": 1.28, "te": 1.20, "of": 1.17, "ed": 1.17, "is": 1.13, "it": 1.12,
	"al": 1.09, "ar": 1.07, "st": 1.05, "to": 1.04, "nt": 1.04, "ng": 0.95,
	"se": 0.93, "ha": 0.93, "as": 0.87, "ou": 0.87, "io": 0.83, "le": 0.83,
	"ve": 0.83, "co": 0.79, "me": 0.79, "de": 0.76, "hi": 0.76, "ri": 0.73,
	"ro": 0.73, "ic": 0.70, "ne": 0.69, "ea": 0.69, "ra": 0.69, "ce": 0.65,
	"li": 0.62, "ch": 0.60, "ll": 0.58, "be": 0.58, "ma": 0.57, "si": 0.55,
	"om": 0.55, "ur": 0.54, "ca": 0.54, "el": 0.53, "ta": 0.53, "la": 0.52,
	"ns": 0.51, "di": 0.50, "fo": 0.50, "ho": 0.50, "pe": 0.49, "ec": 0.49,
	"pr": 0.49, "no": 0.49, "ct": 0.48, "us": 0.48, "ac": 0.47, "ot": 0.46,
	"il": 0.46, "tr": 0.46, "ly": 0.46, "nc": 0.45, "et": 0.45, "ut": 0.45,
	"ss": 0.45, "so": 0.45, "rs": 0.44, "un": 0.43, "lo": 0.43, "wa": 0.42,
	"ge": 0.42, "ie": 0.42, "wh": 0.42, "ee": 0.41, "wi": 0.40, "em": 0.39,
	"ad": 0.39, "ol": 0.39, "rt": 0.38, "po": 0.38, "we": 0.37, "na": 0.37,
	"ul": 0.37, "ni": 0.36, "ts": 0.36, "mo": 0.36, "ow": 0.35, "pa": 0.35,
	"im": 0.35, "mi": 0.35, "ai": 0.34, "sh": 0.34, "ir": 0.34, "su": 0.34,
	"id": 0.33, "os": 0.33, "iv": 0.33, "ia": 0.32, "am": 0.32, "fi": 0.32,
	"ci": 0.32, "vi": 0.31, "pl": 0.31, "ig": 0.31, "tu": 0.31, "ev": 0.31,
	"ld": 0.30, "ry": 0.30, "mp": 0.30, "fe": 0.30, "bl": 0.29, "ab": 0.29,
	"gh": 0.29, "ty": 0.29, "op": 0.29, "wo": 0.29, "sa": 0.28, "ay": 0.28,
	"ex": 0.27, "ke": 0.27, "fr": 0.27, "oo": 0.27, "av": 0.26, "ag": 0.26,
	"if": 0.26, "ap": 0.26, "gr": 0.25, "od": 0.25, "bo": 0.25, "sp": 0.25,
	"rd": 0.25, "do": 0.24, "uc": 0.24, "bu": 0.24, "ei": 0.24, "ov": 0.23,
	"by": 0.23, "rm": 0.23, "ep": 0.23, "tt": 0.23, "oc": 0.23, "fa": 0.23,
	"ef": 0.23, "cu": 0.23, "rn": 0.22, "sc": 0.22, "gi": 0.22, "da": 0.22,
	"yo": 0.22, "cr": 0.22, "cl": 0.22, "du": 0.21, "ga": 0.21, "qu": 0.21,
	"ue": 0.21, "ff": 0.21, "ba": 0.21, "ey": 0.20, "ls": 0.20, "va": 0.20,
	"um": 0.20, "pp": 0.20, "ua": 0.20, "up": 0.20, "lu": 0.20, "go": 0.19,
	"ht": 0.19, "ru": 0.19, "ug": 0.19, "ds": 0.19, "lt": 0.19, "pi": 0.19,
	"rc": 0.18, "rr": 0.18, "eg": 0.18, "au": 0.18, "ck": 0.18, "ew": 0.18,
	"mu": 0.18, "br": 0.18, "bi": 0.17, "pt": 0.17, "ak": 0.17, "pu": 0.16,
	"ui": 0.16, "rg": 0.16, "ib": 0.16, "tl": 0.16, "ny": 0.16, "ki": 0.16,
	"rk": 0.15, "ys": 0.15, "ob": 0.15, "mm": 0.15, "fu": 0.15, "ph": 0.15,
	"og": 0.15, "ms": 0.15, "ye": 0.15, "ud": 0.14, "mb": 0.14, "ip": 0.14,
	"ub": 0.14, "oi": 0.14, "rl": 0.14, "gu": 0.14, "dr": 0.14, "hr": 0.14,
	"cc": 0.14, "tw": 0.14, "ft": 0.14, "wn": 0.13, "nu": 0.13, "af": 0.13,
	"hu": 0.13, "nn": 0.13, "eo": 0.13, "vo": 0.13, "rv": 0.13, "nf": 0.13,
	"xp": 0.13, "gn": 0.13, "sm": 0.13, "fl": 0.12, "iz": 0.12, "ok": 0.12,
	"nl": 0.12, "my": 0.12, "gl": 0.12, "aw": 0.12, "ju": 0.12, "oa": 0.12,
	"eq": 0.12, "sy": 0.12, "sl": 0.12, "ps": 0.12, "jo": 0.11, "lf": 0.11,
	"nv": 0.11, "je": 0.11, "nk": 0.11, "kn": 0.11, "gs": 0.11, "dy": 0.11,
	"hy": 0.11, "ze": 0.11, "ks": 0.11, "xt": 0.11, "bs": 0.10, "ik": 0.10,
	"dd": 0.10, "cy": 0.10, "rp": 0.10, "sk": 0.10, "xi": 0.09, "oe": 0.09,
	"oy": 0.09, "ws": 0.09, "lv": 0.09, "dl": 0.08, "rf": 0.08, "eu": 0.08,
	"dg": 0.08, "wr": 0.08, "xa": 0.08, "yi": 0.08, "nm": 0.07, "eb": 0.07,
	"rb": 0.07, "tm": 0.07, "xc": 0.07, "eh": 0.07, "tc": 0.07, "gy": 0.07,
	"ja": 0.07, "hn": 0.07, "yp": 0.06, "za": 0.06, "gg": 0.06, "ym": 0.06,
	"sw": 0.06, "bj": 0.06, "lm": 0.06, "cs": 0.06, "ii": 0.05, "ix": 0.05,
	"xe": 0.05, "oh": 0.05, "lk": 0.05, "dv": 0.05, "lp": 0.05, "ax": 0.05,
	"ox": 0.05, "uf": 0.05, "dm": 0.05, "iu": 0.05, "sf": 0.05, "bt": 0.05,
	"ka": 0.05, "yt": 0.05, "ek": 0.05, "pm": 0.05, "ya": 0.05, "gt": 0.05,
	"wl": 0.04, "rh": 0.04, "yl": 0.04, "hs": 0.04, "ah": 0.04, "yc": 0.04,
	"yn": 0.04, "rw": 0.04, "hm": 0.04, "lw": 0.04, "hl": 0.04, "ae": 0.04,
	"zi": 0.04, "az": 0.04, "lc": 0.04, "py": 0.04, "aj": 0.04, "iq": 0.04,
	"nj": 0.04, "bb": 0.04, "nh": 0.04, "uo": 0.03, "kl": 0.03, "lr": 0.03,
	"tn": 0.03, "gm": 0.03, "sn": 0.03, "nr": 0.03, "fy": 0.03, "mn": 0.03,
	"dw": 0.03, "sb": 0.03, "yr": 0.03, "dn": 0.03, "sq": 0.03, "zo": 0.03,
	"oj": 0.03, "yd": 0.03, "lb": 0.03, "wt": 0.03, "lg": 0.03, "ko": 0.03,
	"np": 0.03, "sr": 0.03, "nq": 0.03, "ky": 0.03, "ln": 0.03, "nw": 0.02,
	"tf": 0.02, "fs": 0.02, "cq": 0.02, "dh": 0.02, "sd": 0.02, "vy": 0.02,
	"dj": 0.02, "hw": 0.02, "xu": 0.02, "ao": 0.02, "ml": 0.02, "uk": 0.02,
	"uy": 0.02, "ej": 0.02, "ez": 0.02, "hb": 0.02, "nz": 0.02, "nb": 0.02,
	"mc": 0.02, "yb": 0.02, "tp": 0.02, "xh": 0.01, "ux": 0.01, "tz": 0.01,
	"bv": 0.01, "mf": 0.01, "wd": 0.01, "oz": 0.01, "yw": 0.01, "kh": 0.01,
	"gd": 0.01, "bm": 0.01, "mr": 0.01, "ku": 0.01, "uv": 0.01, "dt": 0.01,
	"hd": 0.01, "aa": 0.01, "xx": 0.01, "df": 0.01, "db": 0.01, "ji": 0.01,
	"kr": 0.01, "xo": 0.01, "cm": 0.01, "zz": 0.01, "nx": 0.01, "yg": 0.01,
	"xy": 0.01, "kg": 0.01, "tb": 0.01, "dc": 0.01, "bd": 0.01, "sg": 0.01,
	"wy": 0.01, "zy": 0.01, "aq": 0.01, "hf": 0.01, "cd": 0.01, "vu": 0.01,
	"kw": 0.01, "zu": 0.01, "bn": 0.01, "ih": 0.01, "tg": 0.01, "xv": 0.01,
	"uz": 0.01, "bc": 0.01, "xf": 0.01, "yz": 0.01, "km": 0.01, "dp": 0.01,
	"lh": 0.01, "wf": 0.01, "kf": 0.01, "pf": 0.01, "cf": 0.01, "mt": 0.01,
	"yu": 0.01, "cp": 0.01, "pb": 0.01, "td": 0.01, "zl": 0.01, "sv": 0.01,
	"hc": 0.01, "mg": 0.01, "pw": 0.01, "gf": 0.01, "pd": 0.01, "pn": 0.01,
	"pc": 0.01, "rx": 0.01, "tv": 0.01, "ij": 0.01, "wm": 0.01, "uh": 0.01,
	"wk": 0.01, "wb": 0.01, "bh": 0.01,
}

// englishBigramScale is the average bigram frequency, in percent, at which
// a label reads as fully English
const englishBigramScale = 0.5

// highRiskTLDs are suffixes disproportionately used by generated and
// throwaway domains
var highRiskTLDs = map[string]struct{}{
	"tk": {}, "ml": {}, "ga": {}, "cf": {}, "gq": {}, "xyz": {}, "top": {},
	"pw": {}, "cc": {}, "su": {}, "ws": {}, "biz": {}, "club": {}, "online": {},
	"site": {}, "icu": {}, "buzz": {}, "rest": {}, "work": {}, "click": {},
	"link": {}, "loan": {}, "win": {}, "bid": {}, "stream": {}, "download": {},
	"racing": {}, "review": {}, "date": {}, "party": {}, "trade": {}, "science": {},
	"gdn": {}, "kim": {}, "men": {}, "country": {}, "cricket": {}, "accountant": {},
	"zip": {}, "mov": {}, "cyou": {}, "monster": {}, "quest": {}, "sbs": {},
}

// commonTLDs are suffixes of the bulk of legitimate traffic
var commonTLDs = map[string]struct{}{
	"com": {}, "net": {}, "org": {}, "edu": {}, "gov": {}, "mil": {}, "int": {},
	"io": {}, "co": {}, "us": {}, "uk": {}, "co.uk": {}, "org.uk": {}, "ac.uk": {},
	"de": {}, "fr": {}, "nl": {}, "it": {}, "es": {}, "se": {}, "no": {},
	"fi": {}, "dk": {}, "ch": {}, "at": {}, "be": {}, "ca": {}, "au": {},
	"com.au": {}, "jp": {}, "co.jp": {}, "kr": {}, "in": {}, "br": {}, "com.br": {},
	"mx": {}, "nz": {}, "ie": {}, "pl": {}, "eu": {}, "info": {}, "dev": {},
	"app": {}, "cloud": {}, "ai": {},
}

// tldRisk returns 1 for high risk suffixes, 0.2 for common ones and 0.5
// for everything else
func tldRisk(suffix string) float64 {
	if _, ok := highRiskTLDs[suffix]; ok {
		return 1
	}
	if _, ok := commonTLDs[suffix]; ok {
		return 0.2
	}
	return 0.5
}

// recognizableWords are substrings that show a human picked the label
var recognizableWords = []string{
	"account", "admin", "amazon", "api", "app", "apple", "auth", "bank", "blog",
	"book", "cdn", "chat", "cloud", "code", "data", "dev", "docs", "drive",
	"edge", "email", "face", "file", "game", "gmail", "google", "group", "help",
	"home", "host", "info", "intra", "learn", "life", "live", "login", "mail",
	"market", "media", "micro", "mobile", "music", "news", "office", "online",
	"pay", "photo", "play", "portal", "press", "search", "secure", "server",
	"service", "shop", "site", "soft", "sport", "static", "store", "stream",
	"support", "sync", "tech", "travel", "update", "video", "web", "wiki",
	"windows", "world", "yahoo",
}
